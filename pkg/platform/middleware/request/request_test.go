package request

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsrengine/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	capture := func(id string) (string, *httptest.ResponseRecorder) {
		var got string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = requestcontext.RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/privacy-requests", nil)
		if id != "" {
			req.Header.Set("X-Request-ID", id)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return got, w
	}

	t.Run("generates a uuid when absent", func(t *testing.T) {
		got, w := capture("")
		assert.Len(t, got, 36)
		assert.Equal(t, got, w.Header().Get("X-Request-ID"))
	})

	t.Run("keeps a safe client id", func(t *testing.T) {
		got, _ := capture("trace.span_1234")
		assert.Equal(t, "trace.span_1234", got)
	})

	t.Run("replaces unsafe or oversized ids", func(t *testing.T) {
		got, _ := capture("bad\nid")
		assert.NotEqual(t, "bad\nid", got)

		got, _ = capture(strings.Repeat("a", MaxRequestIDLength+1))
		assert.Len(t, got, 36)
	})
}

func TestLoggerTruncatesClientAddress(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/consent", nil)
	req.RemoteAddr = "203.0.113.77:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.0", entry["remote_addr_prefix"])
	assert.EqualValues(t, http.StatusCreated, entry["status"])
}

func TestDeviceLabel(t *testing.T) {
	chrome := deviceLabel("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.True(t, strings.HasPrefix(chrome, "Chrome on "), chrome)
	assert.Equal(t, "bot", deviceLabel("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
	assert.Equal(t, "unknown", deviceLabel(""))
}

func TestLoggerSkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Zero(t, buf.Len())
}

func TestRecovery(t *testing.T) {
	h := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() { h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil)) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		contentType string
		want        int
	}{
		{"json", "application/json", http.StatusOK},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
		{"missing header", "", http.StatusOK},
		{"form", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/privacy-requests", strings.NewReader(`{}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type latencyRecorder struct{ endpoints []string }

func (l *latencyRecorder) ObserveEndpointLatency(endpoint string, _ time.Duration) {
	l.endpoints = append(l.endpoints, endpoint)
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	rec := &latencyRecorder{}
	r := chi.NewRouter()
	r.Use(Latency(rec))
	r.Get("/privacy-requests/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/privacy-requests/abc", nil))

	assert.Equal(t, []string{"GET /privacy-requests/{id}"}, rec.endpoints)
}
