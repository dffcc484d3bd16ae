package models

import (
	"slices"
	"time"

	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
)

// Kind tags the request variant. Code that branches on it switches
// exhaustively over KindAccess and KindDeletion.
type Kind string

const (
	KindAccess   Kind = "ACCESS"
	KindDeletion Kind = "DELETION"
)

func (k Kind) IsValid() bool {
	return k == KindAccess || k == KindDeletion
}

func (k Kind) String() string {
	return string(k)
}

// State is the request lifecycle position.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CanTransitionTo checks if a transition from the current state to the target is valid.
// Valid transitions:
// - PENDING -> PROCESSING (worker claim)
// - PENDING -> CANCELLED (user cancel)
// - PROCESSING -> COMPLETED | FAILED (worker finish)
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StatePending:
		return target == StateProcessing || target == StateCancelled
	case StateProcessing:
		return target == StateCompleted || target == StateFailed
	default:
		return false
	}
}

// DownloadHandle is the ACCESS result: where and until when the export can be fetched.
type DownloadHandle struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	SizeBytes int       `json:"size_bytes"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeletionSummary is the DELETION result. Actions holds "deleted" or
// "anonymized" per category; Counts holds affected records.
type DeletionSummary struct {
	Actions       map[string]string `json:"actions"`
	Counts        map[string]int    `json:"counts"`
	ExportsPurged int               `json:"exports_purged,omitempty"`
}

// Request is a data-subject request. Categories is nil for "all categories",
// expanded against the registry snapshot at processing time.
type Request struct {
	ID             id.RequestID
	UserID         id.UserID
	Kind           Kind
	Categories     []string
	State          State
	FailureReason  string
	FailedCategory string
	Download       *DownloadHandle
	Deletion       *DeletionSummary
	// ClaimedAt is when a worker moved the request to PROCESSING.
	ClaimedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRequest builds a PENDING request. Duplicate categories are dropped and
// an empty list is normalized to nil.
func NewRequest(requestID id.RequestID, userID id.UserID, kind Kind, categories []string, now time.Time) (*Request, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request ID required")
	}
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "kind must be ACCESS or DELETION")
	}
	return &Request{
		ID:         requestID,
		UserID:     userID,
		Kind:       kind,
		Categories: NormalizeCategories(categories),
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AllCategories reports whether the request targets every category.
func (r *Request) AllCategories() bool {
	return len(r.Categories) == 0
}

func NormalizeCategories(categories []string) []string {
	if len(categories) == 0 {
		return nil
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// Transition is a compare-and-set state change. The store applies it only
// when the stored state equals From. Result fields are written only for the
// matching target state.
type Transition struct {
	ID             id.RequestID
	From           State
	To             State
	At             time.Time
	FailureReason  string
	FailedCategory string
	Download       *DownloadHandle
	Deletion       *DeletionSummary
}

// Validate rejects transitions the state machine does not allow.
func (t Transition) Validate() error {
	if !t.From.CanTransitionTo(t.To) {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot transition from "+t.From.String()+" to "+t.To.String())
	}
	return nil
}

// Apply mutates r as the store would after a successful compare-and-set.
func (t Transition) Apply(r *Request) {
	r.State = t.To
	r.UpdatedAt = t.At
	switch t.To {
	case StateProcessing:
		r.ClaimedAt = t.At
	case StateFailed:
		r.FailureReason = t.FailureReason
		r.FailedCategory = t.FailedCategory
	case StateCompleted:
		r.Download = t.Download
		r.Deletion = t.Deletion
	}
}

// CreateResult reports whether CreateRequest made a new request or returned
// the existing non-terminal one.
type CreateResult struct {
	Request *Request
	Created bool
}
