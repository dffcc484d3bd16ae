package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "dsrengine/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type consentBody struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
}

func (b *consentBody) Normalize() {
	b.Purpose = strings.ToLower(strings.TrimSpace(b.Purpose))
}

func (b *consentBody) Validate() error {
	if b.UserID == "" {
		return errors.New("user_id is required")
	}
	if b.Purpose == "" {
		return dErrors.New(dErrors.CodeBadRequest, "purpose is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"user_id":"u1","purpose":"marketing"}`))
		w := httptest.NewRecorder()

		got, ok := DecodeJSON[consentBody](w, r, discardLogger())

		require.True(t, ok)
		assert.Equal(t, "u1", got.UserID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{nope`))
		w := httptest.NewRecorder()

		got, ok := DecodeJSON[consentBody](w, r, discardLogger())

		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"user_id":"u1","admin":true}`))
		w := httptest.NewRecorder()

		_, ok := DecodeJSON[consentBody](w, r, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"user_id":"u1","purpose":" Marketing "}`))
		w := httptest.NewRecorder()

		got, ok := DecodeAndPrepare[consentBody](w, r, discardLogger())

		require.True(t, ok)
		assert.Equal(t, "marketing", got.Purpose)
	})

	t.Run("plain validation error maps to validation_error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"purpose":"marketing"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[consentBody](w, r, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Contains(t, body["error_description"], "user_id is required")
	})

	t.Run("domain error keeps its code", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"user_id":"u1"}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[consentBody](w, r, discardLogger())

		assert.False(t, ok)
		assert.Equal(t, "bad_request", decodeError(t, w)["error"])
	})
}
