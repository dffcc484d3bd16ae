package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dsrengine/internal/consent/models"
	"dsrengine/pkg/platform/sentinel"
)

func TestInMemoryStoreLedger(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()
	scope := models.Scope{UserID: "u1", Purpose: "marketing"}

	_, err := store.Latest(ctx, scope)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	for v := int64(1); v <= 5; v++ {
		require.NoError(t, store.Append(ctx, models.Record{
			UserID: "u1", Purpose: "marketing", Granted: v%2 == 1, Version: v, Timestamp: now,
		}))
	}

	latest, err := store.Latest(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest.Version)

	t.Run("rejects non-sequential versions", func(t *testing.T) {
		err := store.Append(ctx, models.Record{UserID: "u1", Purpose: "marketing", Version: 5, Timestamp: now})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		err = store.Append(ctx, models.Record{UserID: "u1", Purpose: "marketing", Version: 7, Timestamp: now})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("pages ascending", func(t *testing.T) {
		page, err := store.ListPage(ctx, scope, 0, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, int64(1), page[0].Version)
		assert.Equal(t, int64(2), page[1].Version)

		page, err = store.ListPage(ctx, scope, 4, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, int64(5), page[0].Version)

		page, err = store.ListPage(ctx, scope, 5, 2)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		_, err := store.Latest(ctx, models.Scope{UserID: "u1", Purpose: "analytics"})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.Latest(ctx, models.Scope{UserID: "u2", Purpose: "marketing"})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestInMemoryStorePreferences(t *testing.T) {
	store := New()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.Preferences(ctx, "u1")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.SetPreference(ctx, "u1", "marketing", true, t0))
	require.NoError(t, store.SetPreference(ctx, "u1", "analytics", false, t0.Add(time.Minute)))

	prefs, err := store.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"marketing": true, "analytics": false}, prefs.Purposes)
	assert.Equal(t, t0.Add(time.Minute), prefs.UpdatedAt)

	prefs.Purposes["marketing"] = false
	again, err := store.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, again.Purposes["marketing"], "returned map must be a copy")
}
