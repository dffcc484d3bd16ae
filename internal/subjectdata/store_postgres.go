package subjectdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/sentinel"
)

// PostgresStore keeps subject records in the subject_records table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, record Record) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	data, err := json.Marshal(record.Data)
	if err != nil {
		return fmt.Errorf("marshal subject record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subject_records (id, user_id, category, data, anonymized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.UserID.String(), record.Category, data, record.Anonymized, record.CreatedAt)
	if err != nil {
		return classify("insert subject record", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, category string, userID id.UserID) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, data, anonymized, created_at
		FROM subject_records
		WHERE category = $1 AND user_id = $2
		ORDER BY created_at ASC, id ASC
	`, category, userID.String())
	if err != nil {
		return nil, classify("list subject records", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, category string, userID id.UserID) (int, error) {
	return s.exec(ctx, "delete subject records",
		`DELETE FROM subject_records WHERE category = $1 AND user_id = $2`, category, userID.String())
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, category string, cutoff time.Time) (int, error) {
	return s.exec(ctx, "delete expired subject records",
		`DELETE FROM subject_records WHERE category = $1 AND created_at < $2`, category, cutoff)
}

func (s *PostgresStore) AnonymizeByUser(ctx context.Context, category string, userID id.UserID, fn Transform) (int, error) {
	return s.anonymize(ctx, fn, `
		SELECT id, user_id, category, data, anonymized, created_at
		FROM subject_records
		WHERE category = $1 AND user_id = $2 AND NOT anonymized
		FOR UPDATE
	`, category, userID.String())
}

func (s *PostgresStore) AnonymizeBefore(ctx context.Context, category string, cutoff time.Time, fn Transform) (int, error) {
	return s.anonymize(ctx, fn, `
		SELECT id, user_id, category, data, anonymized, created_at
		FROM subject_records
		WHERE category = $1 AND created_at < $2 AND NOT anonymized
		FOR UPDATE SKIP LOCKED
	`, category, cutoff)
}

func (s *PostgresStore) CountByCategory(ctx context.Context, category string) (int, int, error) {
	var total, anonymized int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE anonymized)
		FROM subject_records WHERE category = $1
	`, category).Scan(&total, &anonymized)
	if err != nil {
		return 0, 0, classify("count subject records", err)
	}
	return total, anonymized, nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows: %w", op, err)
	}
	return int(n), nil
}

// anonymize locks the selected rows, rewrites them, and commits all or nothing.
func (s *PostgresStore) anonymize(ctx context.Context, fn Transform, selectQuery string, args ...any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin anonymize", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	rows, err := tx.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return 0, classify("select records to anonymize", err)
	}
	records, err := scanRecords(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	for _, r := range records {
		out, err := fn(r)
		if err != nil {
			return 0, err
		}
		data, err := json.Marshal(out.Data)
		if err != nil {
			return 0, fmt.Errorf("marshal anonymized record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE subject_records SET user_id = $2, data = $3, anonymized = TRUE WHERE id = $1
		`, r.ID, out.UserID.String(), data); err != nil {
			return 0, classify("update anonymized record", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, classify("commit anonymize", err)
	}
	return len(records), nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r      Record
			userID string
			raw    []byte
		)
		if err := rows.Scan(&r.ID, &userID, &r.Category, &raw, &r.Anonymized, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject record: %w", err)
		}
		r.UserID = id.UserID(userID)
		if err := json.Unmarshal(raw, &r.Data); err != nil {
			return nil, fmt.Errorf("decode subject record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate subject records", err)
	}
	return out, nil
}

// classify marks connection-level failures as retryable.
func classify(op string, err error) error {
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
