package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

const (
	redisExportKeyPrefix   = "dsr:export:"
	redisExportExpiryKey   = "dsr:export-expiry"
	redisExportOwnerPrefix = "dsr:export-owner:"
)

// RedisIndex persists handle entries in Redis. A sorted set scored by expiry
// and a per-owner set make entries findable for purging; nothing is evicted
// by Redis itself, so the blob key is never lost before the blob is deleted.
type RedisIndex struct {
	client redis.Cmdable
}

// NewRedisIndex accepts any go-redis client (single node, cluster or ring).
func NewRedisIndex(client redis.Cmdable) *RedisIndex {
	return &RedisIndex{client: client}
}

// Save writes the entry and registers it for expiry and owner lookups. The
// expiry comes from the handle; ttl only has to agree with it.
func (i *RedisIndex) Save(ctx context.Context, entry Entry, _ time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode export entry: %w", err)
	}
	token := entry.Handle.Token
	_, err = i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisExportKeyPrefix+token, payload, 0)
		pipe.ZAdd(ctx, redisExportExpiryKey, redis.Z{
			Score:  float64(entry.Handle.ExpiresAt.UnixMilli()),
			Member: token,
		})
		pipe.SAdd(ctx, redisExportOwnerPrefix+entry.Handle.UserID.String(), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save export entry: %w", err)
	}
	return nil
}

// Load returns sentinel.ErrNotFound on a miss, including removed tokens.
func (i *RedisIndex) Load(ctx context.Context, token string) (Entry, error) {
	data, err := i.client.Get(ctx, redisExportKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, sentinel.ErrNotFound
		}
		return Entry{}, fmt.Errorf("find export entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode export entry: %w", err)
	}
	return entry, nil
}

func (i *RedisIndex) Expired(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	tokens, err := i.client.ZRangeByScore(ctx, redisExportExpiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired export entries: %w", err)
	}
	return i.loadAll(ctx, tokens)
}

func (i *RedisIndex) ByOwner(ctx context.Context, owner id.UserID) ([]Entry, error) {
	tokens, err := i.client.SMembers(ctx, redisExportOwnerPrefix+owner.String()).Result()
	if err != nil {
		return nil, fmt.Errorf("list export entries of owner: %w", err)
	}
	return i.loadAll(ctx, tokens)
}

func (i *RedisIndex) Remove(ctx context.Context, entry Entry) error {
	token := entry.Handle.Token
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisExportKeyPrefix+token)
		pipe.ZRem(ctx, redisExportExpiryKey, token)
		pipe.SRem(ctx, redisExportOwnerPrefix+entry.Handle.UserID.String(), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove export entry: %w", err)
	}
	return nil
}

// loadAll skips tokens whose entry is already gone.
func (i *RedisIndex) loadAll(ctx context.Context, tokens []string) ([]Entry, error) {
	out := make([]Entry, 0, len(tokens))
	for _, token := range tokens {
		entry, err := i.Load(ctx, token)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}
