package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dsrengine/internal/ratelimit"
	"dsrengine/pkg/requestcontext"
)

type countingMetrics struct{ scopes []string }

func (m *countingMetrics) IncRateLimited(scope string) { m.scopes = append(m.scopes, scope) }

type brokenStore struct{}

func (brokenStore) AllowN(context.Context, string, int, int, time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis down")
}

type MiddlewareSuite struct {
	suite.Suite
	metrics *countingMetrics
	handler http.Handler
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.metrics = &countingMetrics{}
	s.handler = s.wrap(ratelimit.NewMemoryStore(nil))
}

func (s *MiddlewareSuite) wrap(store ratelimit.Store) http.Handler {
	mw := ratelimit.New(store, 2, time.Minute,
		ratelimit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		ratelimit.WithMetrics(s.metrics),
	)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return mw.Limit("api")(ok)
}

func (s *MiddlewareSuite) call(ip, subject string) *httptest.ResponseRecorder {
	ctx := requestcontext.WithClientIP(context.Background(), ip)
	if subject != "" {
		ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{Subject: subject})
	}
	req := httptest.NewRequest(http.MethodPost, "/privacy-requests", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *MiddlewareSuite) TestRejectsOverLimitWith429() {
	s.Equal(http.StatusOK, s.call("10.0.0.1", "").Code)
	rec := s.call("10.0.0.1", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("2", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = s.call("10.0.0.1", "")
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.NotEmpty(rec.Header().Get("X-RateLimit-Reset"))

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("rate_limit_exceeded", body["error"])
	s.Equal([]string{"api"}, s.metrics.scopes)
}

func (s *MiddlewareSuite) TestAuthenticatedCallersAreKeyedBySubject() {
	s.Equal(http.StatusOK, s.call("10.0.0.1", "alice").Code)
	s.Equal(http.StatusOK, s.call("10.0.0.2", "alice").Code)
	s.Equal(http.StatusTooManyRequests, s.call("10.0.0.3", "alice").Code)

	s.Equal(http.StatusOK, s.call("10.0.0.1", "bob").Code)
	s.Equal(http.StatusOK, s.call("10.0.0.1", "").Code)
}

func (s *MiddlewareSuite) TestStoreFailureLetsRequestThrough() {
	s.handler = s.wrap(brokenStore{})
	for range 5 {
		s.Equal(http.StatusOK, s.call("10.0.0.1", "").Code)
	}
	s.Empty(s.metrics.scopes)
}
