package sync

import (
	"hash/fnv"
	"strings"
	"sync"
)

const shardCount = 64

// ShardedMutex provides fine-grained locking using sharded mutexes.
// Operations are distributed across shards by a hash of the resource key, so
// unrelated users rarely contend. Callers must never hold two keys of the same
// ShardedMutex at once: distinct keys can share a shard.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// NewShardedMutex creates a new ShardedMutex.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// Do runs fn while holding the key's shard lock.
func (m *ShardedMutex) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

// Key joins parts into a composite lock key, e.g. Key(userID, "ACCESS").
func Key(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// shardFor returns the shard index for the given key. Empty keys use shard 0.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
