package fetch

import (
	"context"
	"errors"
	"sync"
)

// connPool hands out page-service connections to fetch workers.
// Connections are dialed lazily on first acquire and reused; a connection
// released as broken is closed and its slot freed for a fresh dial.
type connPool struct {
	dial  func(context.Context) (Conn, error)
	idle  chan Conn
	slots chan struct{}

	mu     sync.Mutex
	live   map[Conn]struct{}
	closed bool
}

func newConnPool(size int, dial func(context.Context) (Conn, error)) *connPool {
	if size < 1 {
		size = 1
	}
	return &connPool{
		dial:  dial,
		idle:  make(chan Conn, size),
		slots: make(chan struct{}, size),
		live:  make(map[Conn]struct{}, size),
	}
}

// Acquire returns an idle connection, dials a new one while under capacity,
// or waits for a release.
func (p *connPool) Acquire(ctx context.Context) (Conn, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
	}

	select {
	case c := <-p.idle:
		return c, nil
	case p.slots <- struct{}{}:
		c, err := p.dial(ctx)
		if err != nil {
			<-p.slots
			return nil, err
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = c.Close()
			<-p.slots
			return nil, errPoolClosed
		}
		p.live[c] = struct{}{}
		p.mu.Unlock()
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errPoolClosed = errors.New("connection pool closed")

// Release returns c to the pool. Broken connections are closed.
func (p *connPool) Release(c Conn, broken bool) {
	p.mu.Lock()
	if broken || p.closed {
		delete(p.live, c)
		p.mu.Unlock()
		_ = c.Close()
		<-p.slots
		return
	}
	p.mu.Unlock()

	p.idle <- c
}

// Close closes every live connection.
func (p *connPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := make([]Conn, 0, len(p.live))
	for c := range p.live {
		conns = append(conns, c)
	}
	p.live = map[Conn]struct{}{}
	p.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
