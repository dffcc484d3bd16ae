// Package export stores assembled access-request payloads behind expiring,
// unguessable download handles.
package export

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// Handle is the download handle attached to a completed ACCESS request.
type Handle struct {
	Token     string       `json:"token"`
	RequestID id.RequestID `json:"request_id"`
	UserID    id.UserID    `json:"user_id"`
	URL       string       `json:"url"`
	SizeBytes int          `json:"size_bytes"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the handle can no longer be resolved at now.
func (h Handle) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// Download is a resolved handle. Exactly one of URL and Payload is set:
// object storage returns a presigned URL, in-process storage returns the bytes.
type Download struct {
	Handle  Handle
	URL     string
	Payload []byte
}

// Store publishes payloads and resolves their handles.
type Store interface {
	Publish(ctx context.Context, owner id.UserID, requestID id.RequestID, payload []byte, ttl time.Duration) (Handle, error)
	Resolve(ctx context.Context, token string) (Download, error)
}

//go:generate mockgen -source=export.go -destination=mocks/mocks.go -package=mocks Store

// Blobs holds compressed payloads by key. Delete of a missing key is not an error.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by blob stores that can hand out direct download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Entry is what the handle index keeps per token.
type Entry struct {
	Handle Handle `json:"handle"`
	Key    string `json:"key"`
}

// Index maps tokens to entries. Load returns sentinel.ErrNotFound for
// unknown or removed tokens. Entries outlive their expiry until Remove, so
// Expired can still name the blob to purge.
type Index interface {
	Save(ctx context.Context, entry Entry, ttl time.Duration) error
	Load(ctx context.Context, token string) (Entry, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	ByOwner(ctx context.Context, owner id.UserID) ([]Entry, error)
	Remove(ctx context.Context, entry Entry) error
}

// purgeBatch bounds how many expired entries one Purge round loads.
const purgeBatch = 500

// Service implements Store on top of a blob store and a handle index.
type Service struct {
	blobs     Blobs
	index     Index
	keyPrefix string
	baseURL   string
	sealer    Sealer
	now       func() time.Time
	newToken  func() (string, error)
}

type Option func(*Service)

// WithKeyPrefix prefixes every blob key, e.g. "exports/".
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) {
		s.keyPrefix = prefix
	}
}

// WithBaseURL sets the public base URL used to build Handle.URL.
func WithBaseURL(base string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimSuffix(base, "/")
	}
}

// WithSealer encrypts payloads at rest. Sealed exports are never presigned:
// downloads go through Resolve so the blob store only sees ciphertext.
func WithSealer(sealer Sealer) Option {
	return func(s *Service) {
		s.sealer = sealer
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(blobs Blobs, index Index, opts ...Option) *Service {
	s := &Service{
		blobs:    blobs,
		index:    index,
		now:      time.Now,
		newToken: randomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish compresses payload, stores it and indexes a fresh token for ttl.
func (s *Service) Publish(ctx context.Context, owner id.UserID, requestID id.RequestID, payload []byte, ttl time.Duration) (Handle, error) {
	if ttl <= 0 {
		return Handle{}, fmt.Errorf("export ttl must be positive, got %s", ttl)
	}
	token, err := s.newToken()
	if err != nil {
		return Handle{}, fmt.Errorf("generate export token: %w", err)
	}
	key := fmt.Sprintf("%s%s/%s.json.zst", s.keyPrefix, owner, requestID)
	data := compress(payload)
	if s.sealer != nil {
		key += ".age"
		if data, err = s.sealer.Seal(data); err != nil {
			return Handle{}, err
		}
	}
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return Handle{}, fmt.Errorf("store export payload: %w", err)
	}

	handle := Handle{
		Token:     token,
		RequestID: requestID,
		UserID:    owner,
		URL:       s.baseURL + "/exports/" + token,
		SizeBytes: len(payload),
		ExpiresAt: s.now().Add(ttl).UTC(),
	}
	if err := s.index.Save(ctx, Entry{Handle: handle, Key: key}, ttl); err != nil {
		return Handle{}, fmt.Errorf("index export handle: %w", err)
	}
	return handle, nil
}

// Resolve looks up token. Expired handles return sentinel.ErrExpired.
func (s *Service) Resolve(ctx context.Context, token string) (Download, error) {
	entry, err := s.index.Load(ctx, token)
	if err != nil {
		return Download{}, err
	}
	now := s.now()
	if entry.Handle.Expired(now) {
		return Download{}, sentinel.ErrExpired
	}

	if p, ok := s.blobs.(Presigner); ok && s.sealer == nil {
		url, err := p.PresignGet(ctx, entry.Key, entry.Handle.ExpiresAt.Sub(now))
		if err != nil {
			return Download{}, fmt.Errorf("presign export: %w", err)
		}
		return Download{Handle: entry.Handle, URL: url}, nil
	}

	data, err := s.blobs.Get(ctx, entry.Key)
	if err != nil {
		return Download{}, fmt.Errorf("load export payload: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return Download{}, err
		}
	}
	payload, err := decompress(data)
	if err != nil {
		return Download{}, err
	}
	return Download{Handle: entry.Handle, Payload: payload}, nil
}

// Purge deletes the blobs and index entries of every expired handle and
// returns how many it removed.
func (s *Service) Purge(ctx context.Context) (int, error) {
	now := s.now()
	purged := 0
	for {
		entries, err := s.index.Expired(ctx, now, purgeBatch)
		if err != nil {
			return purged, fmt.Errorf("list expired exports: %w", err)
		}
		for _, entry := range entries {
			if err := s.drop(ctx, entry); err != nil {
				return purged, err
			}
			purged++
		}
		if len(entries) < purgeBatch {
			return purged, nil
		}
	}
}

// PurgeOwner deletes every export held for owner, expired or not.
func (s *Service) PurgeOwner(ctx context.Context, owner id.UserID) (int, error) {
	entries, err := s.index.ByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("list exports of %s: %w", owner, err)
	}
	for i, entry := range entries {
		if err := s.drop(ctx, entry); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// drop removes the blob before the entry so a failure leaves the entry
// around for the next attempt.
func (s *Service) drop(ctx context.Context, entry Entry) error {
	if err := s.blobs.Delete(ctx, entry.Key); err != nil {
		return fmt.Errorf("delete export payload: %w", err)
	}
	if err := s.index.Remove(ctx, entry); err != nil {
		return fmt.Errorf("remove export handle: %w", err)
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
