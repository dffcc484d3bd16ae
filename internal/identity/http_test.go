package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsrengine/pkg/platform/circuit"
	"dsrengine/pkg/platform/sentinel"
)

func TestHTTPVerifier(t *testing.T) {
	verifiedAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/users/u1/verification":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user_id":"u1","verified":true,"verified_at":"2026-04-01T10:00:00Z"}`))
		case "/users/flaky/verification":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	t.Run("decodes verification", func(t *testing.T) {
		v := NewHTTPVerifier(srv.URL, time.Second)
		ident, err := v.Verify(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, ident.Verified)
		assert.Equal(t, verifiedAt, ident.VerifiedAt.UTC())
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		v := NewHTTPVerifier(srv.URL, time.Second)
		_, err := v.Verify(context.Background(), "ghost")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("5xx is retried then unavailable", func(t *testing.T) {
		calls.Store(0)
		v := NewHTTPVerifier(srv.URL, time.Second, WithRetries(2, time.Millisecond))
		_, err := v.Verify(context.Background(), "flaky")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("open circuit fails fast", func(t *testing.T) {
		breaker := circuit.New("identity_test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
		v := NewHTTPVerifier(srv.URL, time.Second, WithBreaker(breaker), WithRetries(0, time.Millisecond))

		for range 2 {
			_, err := v.Verify(context.Background(), "flaky")
			require.ErrorIs(t, err, sentinel.ErrUnavailable)
		}
		require.Equal(t, circuit.StateOpen, breaker.State())

		calls.Store(0)
		_, err := v.Verify(context.Background(), "u1")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Zero(t, calls.Load(), "no call reaches the service while open")
		assert.Error(t, v.Health(context.Background()))
	})
}

func TestHTTPVerifierKeepsTransportCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	v := NewHTTPVerifier(srv.URL, 5*time.Second, WithRetries(0, time.Millisecond))
	_, err := v.Verify(ctx, "u1")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStaticVerifier(t *testing.T) {
	now := time.Now()
	v := NewStaticVerifier()
	v.Set("u1", true, now)

	ident, err := v.Verify(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ident.FreshAt(now.Add(time.Minute), 15*time.Minute))
	assert.False(t, ident.FreshAt(now.Add(16*time.Minute), 15*time.Minute))

	_, err = v.Verify(context.Background(), "u2")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	permissive := NewPermissiveVerifier()
	ident, err = permissive.Verify(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ident.FreshAt(time.Now(), time.Minute))
}

func TestFreshAtRequiresVerification(t *testing.T) {
	now := time.Now()
	assert.False(t, Identity{Verified: false, VerifiedAt: now}.FreshAt(now, time.Hour))
	assert.False(t, Identity{Verified: true}.FreshAt(now, time.Hour))
}
