package dbus

import (
	"fmt"
	"sync"
)

// cache is a concurrency-safe memo table keyed by an arbitrary
// comparable key. It's used to avoid repeatedly re-validating the
// same signature string (see validateSingleCache).
type cache[K comparable, V any] struct {
	m sync.Map
}

func (c *cache[K, V]) Get(k K) (val V, found bool) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	val, ok = ent.(V)
	if !ok {
		panic(fmt.Sprintf("mystery value %v (%T) in cache", ent, ent))
	}
	return val, true
}

func (c *cache[K, V]) Put(k K, val V) {
	c.m.Store(k, val)
}
