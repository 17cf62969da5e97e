package socketio

import (
	"strings"
	"sync"
	"time"
)

const yeastAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// yeastEncode renders n in the 64-character alphabet engine.io uses for
// cache-busting timestamps.
func yeastEncode(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append(b, yeastAlphabet[n%64])
		n /= 64
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// yeast produces unique, monotonically distinct tokens: the encoded
// millisecond timestamp, suffixed with a counter when called twice in the
// same millisecond.
type yeast struct {
	mu   sync.Mutex
	prev string
	seed int64
	now  func() time.Time
}

func (y *yeast) next() string {
	y.mu.Lock()
	defer y.mu.Unlock()

	now := time.Now
	if y.now != nil {
		now = y.now
	}
	id := yeastEncode(now().UnixMilli())
	if id != y.prev {
		y.seed = 0
		y.prev = id
		return id
	}
	var b strings.Builder
	b.WriteString(id)
	b.WriteByte('.')
	b.WriteString(yeastEncode(y.seed))
	y.seed++
	return b.String()
}
