package seqio

import (
	"sync"
	"sync/atomic"
)

// Counters is a process-wide registry of observability counters,
// keyed by a namespace (one per task/split pair) and a counter name.
// Increments are safe under concurrent use from arbitrarily many shard
// workers; counters are monitoring signals, never correctness inputs.
type Counters struct {
	mu     sync.RWMutex
	counts map[counterKey]*atomic.Int64
}

type counterKey struct {
	Namespace string
	Name      string
}

// NewCounters creates an empty counter registry.
func NewCounters() *Counters {
	return &Counters{
		counts: make(map[counterKey]*atomic.Int64),
	}
}

// Inc increments the named counter by one, creating it on first use.
func (c *Counters) Inc(namespace, name string) {
	c.counter(namespace, name).Add(1)
}

// Get returns the current value of the named counter, zero if it was
// never incremented.
func (c *Counters) Get(namespace, name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.counts[counterKey{namespace, name}]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot returns a copy of all counters as namespace -> name -> value.
func (c *Counters) Snapshot() map[string]map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]map[string]int64)
	for key, v := range c.counts {
		ns := out[key.Namespace]
		if ns == nil {
			ns = make(map[string]int64)
			out[key.Namespace] = ns
		}
		ns[key.Name] = v.Load()
	}
	return out
}

// counter returns the atomic cell for a key, creating it if needed.
func (c *Counters) counter(namespace, name string) *atomic.Int64 {
	key := counterKey{namespace, name}

	c.mu.RLock()
	v, ok := c.counts[key]
	c.mu.RUnlock()
	if ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.counts[key]; ok {
		return v
	}
	v = new(atomic.Int64)
	c.counts[key] = v
	return v
}
