//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dsrengine/internal/consent/models"
	"dsrengine/internal/consent/store"
	"dsrengine/pkg/platform/sentinel"
	"dsrengine/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_records", "consent_preferences")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAppendAndPage() {
	ctx := context.Background()
	scope := models.Scope{UserID: "u1", Purpose: "marketing"}
	now := time.Now().UTC().Truncate(time.Microsecond)

	for v := int64(1); v <= 3; v++ {
		s.Require().NoError(s.store.Append(ctx, models.Record{
			UserID: "u1", Purpose: "marketing", Granted: v != 2, Version: v, Timestamp: now,
		}))
	}

	err := s.store.Append(ctx, models.Record{UserID: "u1", Purpose: "marketing", Version: 3, Timestamp: now})
	s.ErrorIs(err, sentinel.ErrConflict)

	latest, err := s.store.Latest(ctx, scope)
	s.Require().NoError(err)
	s.Equal(int64(3), latest.Version)
	s.True(latest.Granted)

	page, err := s.store.ListPage(ctx, scope, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(int64(2), page[0].Version)
	s.False(page[0].Granted)
}

func (s *PostgresStoreSuite) TestPreferencesMerge() {
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.SetPreference(ctx, "u1", "marketing", true, t0))
	s.Require().NoError(s.store.SetPreference(ctx, "u1", "analytics", false, t0.Add(time.Second)))
	s.Require().NoError(s.store.SetPreference(ctx, "u1", "marketing", false, t0))

	prefs, err := s.store.Preferences(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(map[string]bool{"marketing": false, "analytics": false}, prefs.Purposes)
	s.True(prefs.UpdatedAt.Equal(t0.Add(time.Second)))

	_, err = s.store.Preferences(ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAdvisoryLockRequiresTx() {
	err := s.store.LockScope(context.Background(), models.Scope{UserID: "u1", Purpose: "marketing"})
	s.Error(err)

	tx, err := s.postgres.DB.BeginTx(context.Background(), &sql.TxOptions{})
	s.Require().NoError(err)
	defer tx.Rollback() //nolint:errcheck // test cleanup
	s.NoError(store.NewPostgresTx(tx).LockScope(context.Background(), models.Scope{UserID: "u1", Purpose: "marketing"}))
}
