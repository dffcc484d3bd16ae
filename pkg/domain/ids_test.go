package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dsrengine/pkg/domain-errors"
)

func TestParseUserID(t *testing.T) {
	t.Run("rejects empty and blank", func(t *testing.T) {
		for _, in := range []string{"", "   "} {
			_, err := ParseUserID(in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("rejects reserved characters", func(t *testing.T) {
		_, err := ParseUserID("u1/../admin")
		require.Error(t, err)
	})

	t.Run("rejects oversized ids", func(t *testing.T) {
		_, err := ParseUserID(strings.Repeat("a", maxUserIDLength+1))
		require.Error(t, err)
	})

	t.Run("trims and accepts opaque ids", func(t *testing.T) {
		id, err := ParseUserID(" u1 ")
		require.NoError(t, err)
		assert.Equal(t, UserID("u1"), id)
	})
}

func TestParseRequestID(t *testing.T) {
	_, err := ParseRequestID("not-a-uuid")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	raw := uuid.New()
	id, err := ParseRequestID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, RequestID(raw), id)
	assert.False(t, id.IsNil())
}

func TestRequestID_JSONRoundTripsAsString(t *testing.T) {
	id := NewRequestID()
	b, err := json.Marshal(map[string]RequestID{"id": id})
	require.NoError(t, err)
	assert.Contains(t, string(b), id.String())

	var out map[string]RequestID
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, id, out["id"])
}
