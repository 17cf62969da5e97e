package fetch

import (
	"context"
	"fmt"
	"sync"
)

// Arena collects fetched pages by index so a consumer can take them in
// order while workers complete out of order.
type Arena struct {
	slots []arenaSlot
}

type arenaSlot struct {
	once  sync.Once
	ready chan struct{}
	page  FetchedPage
}

// NewArena creates an arena for n pages.
func NewArena(n int) *Arena {
	a := &Arena{slots: make([]arenaSlot, n)}
	for i := range a.slots {
		a.slots[i].ready = make(chan struct{})
	}
	return a
}

// Len returns the number of slots.
func (a *Arena) Len() int { return len(a.slots) }

// Put stores p in its slot. The first delivery for an index wins.
func (a *Arena) Put(p FetchedPage) {
	if p.Index < 0 || p.Index >= len(a.slots) {
		return
	}
	s := &a.slots[p.Index]
	s.once.Do(func() {
		s.page = p
		close(s.ready)
	})
}

// Wait blocks until the page at index is available or ctx is done.
func (a *Arena) Wait(ctx context.Context, index int) (FetchedPage, error) {
	if index < 0 || index >= len(a.slots) {
		return FetchedPage{}, fmt.Errorf("page index %d out of range [0, %d)", index, len(a.slots))
	}
	s := &a.slots[index]
	select {
	case <-s.ready:
		return s.page, nil
	case <-ctx.Done():
		return FetchedPage{}, ctx.Err()
	}
}
