package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entryWithExpiry carries an optional absolute expiry; zero means "no TTL",
// used for immutable ownership positives (spec.md §4.6 "positive results
// may be cached without TTL").
type entryWithExpiry struct {
	value  string
	expiry time.Time // zero value means never expires
}

// LRU is the default in-process Cache, backed by
// github.com/hashicorp/golang-lru/v2 (present in the retrieved corpus's
// AKJUS-bsc-erigon dependency set). It never returns an error to callers:
// any capacity eviction or absent entry is simply a miss, matching the
// non-throwing cache contract of spec.md §6/§9.
type LRU struct {
	mu sync.Mutex
	c  *lru.Cache[string, entryWithExpiry]
}

// NewLRU builds an LRU cache of the given capacity (number of entries).
func NewLRU(capacity int) (*LRU, error) {
	c, err := lru.New[string, entryWithExpiry](capacity)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.c.Get(key)
	if !ok {
		return "", false
	}
	if !e.expiry.IsZero() && time.Now().After(e.expiry) {
		l.c.Remove(key)
		return "", false
	}
	return e.value, true
}

func (l *LRU) Set(key, value string, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := entryWithExpiry{value: value}
	if ttl > 0 {
		e.expiry = time.Now().Add(ttl)
	}
	l.c.Add(key, e)
}

func (l *LRU) Del(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Remove(key)
}

func (l *LRU) MGet(keys []string) []Entry {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		if v, ok := l.Get(k); ok {
			out[i] = Entry{Value: v, Ok: true}
		}
	}
	return out
}
