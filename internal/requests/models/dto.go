package models

import (
	"strings"
	"time"

	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/validation"
)

type CreateRequest struct {
	UserID     string   `json:"user_id" validate:"required,notblank"`
	Kind       string   `json:"kind" validate:"required,oneof=ACCESS DELETION"`
	Categories []string `json:"categories" validate:"omitempty,dive,identifier"`
}

func (r *CreateRequest) Normalize() {
	if r == nil {
		return
	}
	r.UserID = strings.TrimSpace(r.UserID)
	r.Kind = strings.ToUpper(strings.TrimSpace(r.Kind))
	for i, c := range r.Categories {
		r.Categories[i] = strings.ToLower(strings.TrimSpace(c))
	}
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type CreateResponse struct {
	RequestID id.RequestID `json:"request_id"`
	State     State        `json:"state"`
	Created   bool         `json:"created"`
}

// RequestResponse is the full request view returned by status, cancel and list.
type RequestResponse struct {
	RequestID      id.RequestID     `json:"request_id"`
	UserID         id.UserID        `json:"user_id"`
	Kind           Kind             `json:"kind"`
	Categories     []string         `json:"categories"`
	State          State            `json:"state"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	FailedCategory string           `json:"failed_category,omitempty"`
	Download       *DownloadHandle  `json:"download,omitempty"`
	Deletion       *DeletionSummary `json:"deletion,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ToResponse renders r. Nil categories are shown as ["all"].
func ToResponse(r *Request) RequestResponse {
	categories := r.Categories
	if r.AllCategories() {
		categories = []string{"all"}
	}
	return RequestResponse{
		RequestID:      r.ID,
		UserID:         r.UserID,
		Kind:           r.Kind,
		Categories:     categories,
		State:          r.State,
		FailureReason:  r.FailureReason,
		FailedCategory: r.FailedCategory,
		Download:       r.Download,
		Deletion:       r.Deletion,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type ListResponse struct {
	Requests []RequestResponse `json:"requests"`
}
