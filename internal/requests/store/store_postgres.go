package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dsrengine/internal/requests/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const requestColumns = `id, user_id, kind, categories, state, failure_reason, failed_category, result, claimed_at, created_at, updated_at`

// PostgresStore persists privacy requests in PostgreSQL. The partial unique
// index privacy_requests_one_active_per_kind backs the one-active-request rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// result is the JSONB shape of the result column.
type result struct {
	Download *models.DownloadHandle  `json:"download,omitempty"`
	Deletion *models.DeletionSummary `json:"deletion,omitempty"`
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	categories, err := encodeCategories(r.Categories)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO privacy_requests (id, user_id, kind, categories, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.UserID.String(),
		string(r.Kind),
		categories,
		string(r.State),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create privacy request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM privacy_requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get privacy request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, userID id.UserID, kind models.Kind) (*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM privacy_requests
		WHERE user_id = $1 AND kind = $2 AND state IN ('PENDING', 'PROCESSING')
	`
	r, err := scanRequest(s.db.QueryRowContext(ctx, query, userID.String(), string(kind)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active privacy request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM privacy_requests
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list privacy requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan privacy request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate privacy requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]id.RequestID, error) {
	query := `
		SELECT id FROM privacy_requests
		WHERE state = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending privacy requests: %w", err)
	}
	defer rows.Close()

	var ids []id.RequestID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan pending privacy request: %w", err)
		}
		ids = append(ids, id.RequestID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending privacy requests: %w", err)
	}
	return ids, nil
}

// ListStale returns PROCESSING requests whose claim is older than
// claimedBefore. Their worker is presumed gone.
func (s *PostgresStore) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM privacy_requests
		WHERE state = 'PROCESSING' AND claimed_at < $1
		ORDER BY claimed_at ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, claimedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale privacy requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale privacy request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale privacy requests: %w", err)
	}
	return out, nil
}

// Transition is a single conditional UPDATE; the WHERE clause on state is the
// compare-and-set.
func (s *PostgresStore) Transition(ctx context.Context, t models.Transition) (*models.Request, error) {
	if err := t.Validate(); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	var res []byte
	if t.Download != nil || t.Deletion != nil {
		encoded, err := json.Marshal(result{Download: t.Download, Deletion: t.Deletion})
		if err != nil {
			return nil, fmt.Errorf("encode privacy request result: %w", err)
		}
		res = encoded
	}
	query := `
		UPDATE privacy_requests
		SET state = $3,
		    updated_at = $4,
		    failure_reason = COALESCE($5, failure_reason),
		    failed_category = COALESCE($6, failed_category),
		    result = COALESCE($7, result),
		    claimed_at = CASE WHEN $3 = 'PROCESSING' THEN $4 ELSE claimed_at END
		WHERE id = $1 AND state = $2
		RETURNING ` + requestColumns
	r, err := scanRequest(s.db.QueryRowContext(ctx, query,
		uuid.UUID(t.ID),
		string(t.From),
		string(t.To),
		t.At,
		nullString(t.FailureReason),
		nullString(t.FailedCategory),
		res,
	))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition privacy request: %w", err)
	}
	// Distinguish a lost compare-and-set from a missing row.
	if _, err := s.Get(ctx, t.ID); err != nil {
		return nil, err
	}
	return nil, sentinel.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r              models.Request
		rawID          uuid.UUID
		userID         string
		kind, state    string
		categories     []byte
		failureReason  sql.NullString
		failedCategory sql.NullString
		res            []byte
		claimedAt      sql.NullTime
	)
	if err := row.Scan(&rawID, &userID, &kind, &categories, &state, &failureReason, &failedCategory, &res, &claimedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ClaimedAt = claimedAt.Time
	r.ID = id.RequestID(rawID)
	r.UserID = id.UserID(userID)
	r.Kind = models.Kind(kind)
	r.State = models.State(state)
	r.FailureReason = failureReason.String
	r.FailedCategory = failedCategory.String
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &r.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	if len(res) > 0 {
		var decoded result
		if err := json.Unmarshal(res, &decoded); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		r.Download = decoded.Download
		r.Deletion = decoded.Deletion
	}
	return &r, nil
}

func encodeCategories(categories []string) ([]byte, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
