package sync

import (
	"context"
	"sync"
)

const shardCount = 32

// KeyedMutex serializes work per key. Keys are spread over shards so the
// bookkeeping map is never a single point of contention, and each key gets
// its own semaphore so unrelated keys never block one another.
type KeyedMutex struct {
	shards [shardCount]shard
}

type shard struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	for i := range m.shards {
		m.shards[i].slots = make(map[string]*slot)
	}
	return m
}

// Lock blocks until key is held or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key string) error {
	sh := &m.shards[m.shardFor(key)]
	s := sh.acquire(key)

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		sh.release(key)
		return ctx.Err()
	}
}

// Unlock releases key. Unlocking a key that is not held panics, like sync.Mutex.
func (m *KeyedMutex) Unlock(key string) {
	sh := &m.shards[m.shardFor(key)]
	sh.mu.Lock()
	s, ok := sh.slots[key]
	sh.mu.Unlock()
	if !ok {
		panic("sync: unlock of unlocked key " + key)
	}
	select {
	case <-s.sem:
	default:
		panic("sync: unlock of unlocked key " + key)
	}
	sh.release(key)
}

// heldKeys reports how many keys are currently held or awaited.
func (m *KeyedMutex) heldKeys() int {
	n := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		n += len(sh.slots)
		sh.mu.Unlock()
	}
	return n
}

func (sh *shard) acquire(key string) *slot {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		sh.slots[key] = s
	}
	s.refs++
	return s
}

func (sh *shard) release(key string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(sh.slots, key)
	}
}

// shardFor returns the shard index for key; the empty key maps to shard 0.
func (m *KeyedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % shardCount)
}

// hashString is a djb2-style hash used only for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
