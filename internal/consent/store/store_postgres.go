package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"dsrengine/internal/consent/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore persists the consent ledger in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed consent store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// LockScope takes a transaction-scoped advisory lock for the scope. It must be
// called on a store bound to a transaction.
func (s *PostgresStore) LockScope(ctx context.Context, scope models.Scope) error {
	if s.tx == nil {
		return fmt.Errorf("lock consent scope: store is not bound to a transaction")
	}
	if _, err := s.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope.Key()); err != nil {
		return fmt.Errorf("lock consent scope: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, scope models.Scope) (*models.Record, error) {
	query := `
		SELECT user_id, purpose, version, granted, recorded_at
		FROM consent_records
		WHERE user_id = $1 AND purpose = $2
		ORDER BY version DESC
		LIMIT 1
	`
	record, err := scanRecord(s.execer().QueryRowContext(ctx, query, scope.UserID.String(), scope.Purpose))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Append(ctx context.Context, record models.Record) error {
	query := `
		INSERT INTO consent_records (user_id, purpose, version, granted, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer().ExecContext(ctx, query,
		record.UserID.String(),
		record.Purpose,
		record.Version,
		record.Granted,
		record.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("append consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPage(ctx context.Context, scope models.Scope, afterVersion int64, limit int) ([]models.Record, error) {
	query := `
		SELECT user_id, purpose, version, granted, recorded_at
		FROM consent_records
		WHERE user_id = $1 AND purpose = $2 AND version > $3
		ORDER BY version ASC
		LIMIT $4
	`
	rows, err := s.execer().QueryContext(ctx, query, scope.UserID.String(), scope.Purpose, afterVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("list consent history: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent history: %w", err)
	}
	return records, nil
}

// SetPreference merges one purpose into the user's preferences document.
func (s *PostgresStore) SetPreference(ctx context.Context, userID id.UserID, purpose string, granted bool, at time.Time) error {
	patch, err := json.Marshal(map[string]bool{purpose: granted})
	if err != nil {
		return fmt.Errorf("marshal preference: %w", err)
	}
	query := `
		INSERT INTO consent_preferences (user_id, purposes, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET purposes = consent_preferences.purposes || EXCLUDED.purposes,
		    updated_at = GREATEST(consent_preferences.updated_at, EXCLUDED.updated_at)
	`
	if _, err := s.execer().ExecContext(ctx, query, userID.String(), string(patch), at); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

func (s *PostgresStore) Preferences(ctx context.Context, userID id.UserID) (*models.Preferences, error) {
	query := `SELECT purposes, updated_at FROM consent_preferences WHERE user_id = $1`
	var (
		raw   []byte
		prefs = models.Preferences{UserID: userID}
	)
	err := s.execer().QueryRowContext(ctx, query, userID.String()).Scan(&raw, &prefs.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find preferences: %w", err)
	}
	if err := json.Unmarshal(raw, &prefs.Purposes); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &prefs, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		record models.Record
		userID string
	)
	if err := row.Scan(&userID, &record.Purpose, &record.Version, &record.Granted, &record.Timestamp); err != nil {
		return nil, err
	}
	record.UserID = id.UserID(userID)
	return &record, nil
}
