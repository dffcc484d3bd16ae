package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "dsrengine/pkg/domain"
)

// PostgresStore implements Store on the audit_log table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts the entry. Re-appending an entry with the same id is a no-op.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_log (
			id, actor, action, user_id, category, request_id,
			purpose, outcome, reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	var requestID *uuid.UUID
	if event.RequestID != nil {
		rid := uuid.UUID(*event.RequestID)
		requestID = &rid
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(event.ID),
		event.Actor,
		string(event.Action),
		event.UserID.String(),
		nullString(event.Category),
		requestID,
		nullString(event.Purpose),
		string(event.Outcome),
		nullString(event.Reason),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns the user's entries oldest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Event, error) {
	query := `
		SELECT id, actor, action, user_id, category, request_id,
			   purpose, outcome, reason, created_at
		FROM audit_log
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                         Event
			eventID                   uuid.UUID
			requestID                 uuid.NullUUID
			action, outcome, user     string
			category, purpose, reason sql.NullString
		)
		if err := rows.Scan(&eventID, &e.Actor, &action, &user, &category, &requestID,
			&purpose, &outcome, &reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ID = id.AuditID(eventID)
		e.Action = Action(action)
		e.Outcome = Outcome(outcome)
		e.UserID = id.UserID(user)
		e.Category = category.String
		e.Purpose = purpose.String
		e.Reason = reason.String
		if requestID.Valid {
			e.RequestID = RequestRef(id.RequestID(requestID.UUID))
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
