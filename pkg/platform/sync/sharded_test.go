package sync

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Lock(Key("u1", "DELETION"))
			defer m.Unlock(Key("u1", "DELETION"))
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_DoReturnsFnError(t *testing.T) {
	m := NewShardedMutex()
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Do("k", func() error { return boom }), boom)
	// lock was released
	assert.NoError(t, m.Do("k", func() error { return nil }))
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex()
	shards := make(map[int]bool)
	for _, key := range []string{"u1", "u2", Key("u1", "ACCESS"), Key("u1", "payment_info"), "user-456", "user-789"} {
		shards[m.shardFor(key)] = true
	}
	assert.GreaterOrEqual(t, len(shards), 3, "expected keys to distribute across multiple shards")
	assert.Equal(t, 0, m.shardFor(""))
}

func TestKey_SeparatesParts(t *testing.T) {
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}
