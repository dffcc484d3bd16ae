package export

import (
	"context"
	"slices"
	"sync"
	"time"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// MemoryBlobs keeps payloads in process memory.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string][]byte)}
}

func (b *MemoryBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

// Len reports how many payloads are held.
func (b *MemoryBlobs) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.blobs)
}

func (b *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return data, nil
}

// MemoryIndex keeps handle entries in process memory. Entries stay after
// expiry so Resolve can report expiry instead of not-found, until Remove.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

func (i *MemoryIndex) Save(_ context.Context, entry Entry, _ time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[entry.Handle.Token] = entry
	return nil
}

func (i *MemoryIndex) Load(_ context.Context, token string) (Entry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entry, ok := i.entries[token]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

// Expired returns up to limit entries whose handle expired at or before now,
// soonest expiry first.
func (i *MemoryIndex) Expired(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	i.mu.RLock()
	var out []Entry
	for _, entry := range i.entries {
		if entry.Handle.Expired(now) {
			out = append(out, entry)
		}
	}
	i.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		return a.Handle.ExpiresAt.Compare(b.Handle.ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (i *MemoryIndex) ByOwner(_ context.Context, owner id.UserID) ([]Entry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Entry
	for _, entry := range i.entries {
		if entry.Handle.UserID == owner {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (i *MemoryIndex) Remove(_ context.Context, entry Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, entry.Handle.Token)
	return nil
}
