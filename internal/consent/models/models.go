package models

import (
	"strings"
	"time"

	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/validation"
)

// Record is one immutable entry in a user's consent history for a purpose.
//
// Only the highest Version per (UserID, Purpose) is authoritative. Earlier
// versions are retained for audit and are never rewritten.
type Record struct {
	UserID    id.UserID `json:"user_id"`
	Purpose   string    `json:"purpose"`
	Granted   bool      `json:"granted"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(userID id.UserID, purpose string, granted bool, version int64, at time.Time) (*Record, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purpose required")
	}
	if version < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version must be positive")
	}
	if at.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "timestamp required")
	}
	return &Record{
		UserID:    userID,
		Purpose:   purpose,
		Granted:   granted,
		Version:   version,
		Timestamp: at,
	}, nil
}

// Scope identifies the serialization unit for consent writes.
type Scope struct {
	UserID  id.UserID
	Purpose string
}

func (s Scope) Key() string {
	return s.UserID.String() + "|" + s.Purpose
}

// RecordResult tells callers whether a recordConsent call changed state.
type RecordResult struct {
	Changed bool   `json:"changed"`
	Version int64  `json:"version"`
	Record  Record `json:"-"`
}

// Preferences is the derived purpose -> granted view over the latest records.
// It is not authoritative; the ledger is.
type Preferences struct {
	UserID    id.UserID       `json:"user_id"`
	Purposes  map[string]bool `json:"purposes"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecordConsentRequest is the POST /consent body.
type RecordConsentRequest struct {
	UserID  string `json:"user_id" validate:"required,notblank"`
	Purpose string `json:"purpose" validate:"required,identifier"`
	Granted *bool  `json:"granted" validate:"required"`
}

func (r *RecordConsentRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.Purpose = strings.ToLower(strings.TrimSpace(r.Purpose))
}

func (r *RecordConsentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type RecordConsentResponse struct {
	Changed bool  `json:"changed"`
	Version int64 `json:"version"`
}

type CurrentConsentResponse struct {
	UserID  id.UserID `json:"user_id"`
	Purpose string    `json:"purpose"`
	Granted bool      `json:"granted"`
}

type HistoryResponse struct {
	Records []Record `json:"records"`
}
