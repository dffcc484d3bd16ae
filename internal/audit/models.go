package audit

import (
	"time"

	id "dsrengine/pkg/domain"
)

// Event is one append-only audit entry. Entries are never purged by deletion
// requests, so they carry identifiers only and never personal data.
type Event struct {
	ID        id.AuditID    `json:"id"`
	Actor     string        `json:"actor"`
	Action    Action        `json:"action"`
	UserID    id.UserID     `json:"user_id"`
	Category  string        `json:"category,omitempty"`
	RequestID *id.RequestID `json:"request_id,omitempty"`
	Purpose   string        `json:"purpose,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type Action string

const (
	ActionConsentRecorded     Action = "consent_recorded"
	ActionConsentUnchanged    Action = "consent_unchanged"
	ActionRequestCreated      Action = "request_created"
	ActionRequestDeduplicated Action = "request_deduplicated"
	ActionRequestCancelled    Action = "request_cancelled"
	ActionRequestCompleted    Action = "request_completed"
	ActionRequestFailed       Action = "request_failed"
	ActionCategoryCollected   Action = "category_collected"
	ActionCategoryErased      Action = "category_erased"
	ActionCategoryAnonymized  Action = "category_anonymized"
	ActionRetentionErased     Action = "retention_erased"
	ActionRetentionAnonymized Action = "retention_anonymized"
	ActionExportsPurged       Action = "exports_purged"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Actors that are not end users.
const (
	ActorSystem  = "system"
	ActorWorker  = "worker"
	ActorSweeper = "retention_sweeper"
)

// RequestRef is a convenience for populating Event.RequestID.
func RequestRef(rid id.RequestID) *id.RequestID {
	return &rid
}
