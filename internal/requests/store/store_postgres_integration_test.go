//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dsrengine/internal/requests/models"
	"dsrengine/internal/requests/store"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
	"dsrengine/pkg/testutil"
	"dsrengine/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "privacy_requests"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) create(userID id.UserID, kind models.Kind, categories []string) *models.Request {
	r, err := models.NewRequest(id.NewRequestID(), userID, kind, categories, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestPartialUniqueIndexAllowsOneActive() {
	ctx := context.Background()
	first := s.create("u1", models.KindAccess, nil)

	dup, err := models.NewRequest(id.NewRequestID(), "u1", models.KindAccess, nil, s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	active, err := s.store.FindActive(ctx, "u1", models.KindAccess)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)
	s.Nil(active.Categories)

	_, err = s.store.Transition(ctx, models.Transition{ID: first.ID, From: models.StatePending, To: models.StateCancelled, At: s.now})
	s.Require().NoError(err)
	s.NoError(s.store.Create(ctx, dup))
}

func (s *PostgresStoreSuite) TestConcurrentClaimHasOneWinner() {
	ctx := context.Background()
	r := s.create("u1", models.KindDeletion, []string{"payment_info"})

	result := testutil.RunConcurrent(10, func(int) error {
		_, err := s.store.Transition(ctx, models.Transition{ID: r.ID, From: models.StatePending, To: models.StateProcessing, At: s.now})
		return err
	})
	s.Equal(int32(1), result.Successes)
	s.Equal(int32(9), result.Conflicts)
}

func (s *PostgresStoreSuite) TestResultRoundTrip() {
	ctx := context.Background()
	r := s.create("u1", models.KindAccess, []string{"contact_info"})
	_, err := s.store.Transition(ctx, models.Transition{ID: r.ID, From: models.StatePending, To: models.StateProcessing, At: s.now})
	s.Require().NoError(err)

	handle := &models.DownloadHandle{Token: "tok", URL: "/exports/tok", SizeBytes: 12, ExpiresAt: s.now.Add(time.Hour)}
	_, err = s.store.Transition(ctx, models.Transition{ID: r.ID, From: models.StateProcessing, To: models.StateCompleted, At: s.now, Download: handle})
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StateCompleted, got.State)
	s.Equal([]string{"contact_info"}, got.Categories)
	s.Require().NotNil(got.Download)
	s.Equal("tok", got.Download.Token)
	s.True(handle.ExpiresAt.Equal(got.Download.ExpiresAt))

	_, err = s.store.Transition(ctx, models.Transition{ID: r.ID, From: models.StatePending, To: models.StateCancelled, At: s.now})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.Get(ctx, id.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFailureFieldsAndListing() {
	ctx := context.Background()
	r := s.create("u1", models.KindDeletion, nil)
	pending, err := s.store.ListPending(ctx, 10)
	s.Require().NoError(err)
	s.Equal([]id.RequestID{r.ID}, pending)

	_, err = s.store.Transition(ctx, models.Transition{ID: r.ID, From: models.StatePending, To: models.StateProcessing, At: s.now})
	s.Require().NoError(err)
	failed, err := s.store.Transition(ctx, models.Transition{
		ID: r.ID, From: models.StateProcessing, To: models.StateFailed, At: s.now,
		FailureReason: "category activity_data: erase failed", FailedCategory: "activity_data",
	})
	s.Require().NoError(err)
	s.Equal("activity_data", failed.FailedCategory)

	list, err := s.store.ListByUser(ctx, "u1")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresStoreSuite) TestStaleClaimsAreListedUntilFinished() {
	ctx := context.Background()
	old := s.create("u1", models.KindDeletion, nil)
	recent := s.create("u2", models.KindDeletion, nil)
	s.create("u3", models.KindDeletion, nil)

	_, err := s.store.Transition(ctx, models.Transition{ID: old.ID, From: models.StatePending, To: models.StateProcessing, At: s.now.Add(-2 * time.Hour)})
	s.Require().NoError(err)
	_, err = s.store.Transition(ctx, models.Transition{ID: recent.ID, From: models.StatePending, To: models.StateProcessing, At: s.now})
	s.Require().NoError(err)

	stale, err := s.store.ListStale(ctx, s.now.Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal(old.ID, stale[0].ID)
	s.True(stale[0].ClaimedAt.Equal(s.now.Add(-2 * time.Hour)))

	failed, err := s.store.Transition(ctx, models.Transition{ID: old.ID, From: models.StateProcessing, To: models.StateFailed, At: s.now, FailureReason: "worker lost"})
	s.Require().NoError(err)
	s.True(failed.ClaimedAt.Equal(s.now.Add(-2*time.Hour)), "finishing keeps the claim time")

	stale, err = s.store.ListStale(ctx, s.now.Add(-time.Hour), 10)
	s.Require().NoError(err)
	s.Empty(stale)

	s.create("u1", models.KindDeletion, nil)
}
