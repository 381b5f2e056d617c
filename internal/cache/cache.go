package cache

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the number of memoized entries per Memo.
const DefaultSize = 512

// Key computes a unique key using inputs (e.g., content + tool tag)
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Memo is an in-process LRU for results of pure functions keyed by content hash.
// Values must be treated as read-only by callers.
type Memo[V any] struct {
	c *lru.Cache[string, V]
}

func NewMemo[V any](size int) (*Memo[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Memo[V]{c: c}, nil
}

func (m *Memo[V]) Load(key string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	return m.c.Get(key)
}

func (m *Memo[V]) Store(key string, v V) {
	if m == nil {
		return
	}
	m.c.Add(key, v)
}

func (m *Memo[V]) Len() int {
	if m == nil {
		return 0
	}
	return m.c.Len()
}
