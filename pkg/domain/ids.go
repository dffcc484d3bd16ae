// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "dsrengine/pkg/domain-errors"
)

// maxUserIDLength bounds user identifiers issued by the external identity provider.
const maxUserIDLength = 128

// UserID is the opaque subject identifier issued by the identity provider.
// It is not a UUID: the engine never mints user IDs, it only carries them.
type UserID string

// Distinct ID types - compiler prevents passing a RequestID where an AuditID is expected.
type (
	RequestID uuid.UUID
	AuditID   uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "user ID cannot be empty")
	}
	if len(s) > maxUserIDLength {
		return "", dErrors.New(dErrors.CodeValidation, "user ID too long")
	}
	if strings.ContainsAny(s, "/?#") {
		return "", dErrors.New(dErrors.CodeValidation, "user ID contains reserved characters")
	}
	return UserID(s), nil
}

func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request ID")
	return RequestID(id), err
}

// NewRequestID mints a random request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewAuditID mints a random audit entry identifier.
func NewAuditID() AuditID { return AuditID(uuid.New()) }

// String methods - for logging and debugging.

func (id UserID) String() string    { return string(id) }
func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool    { return id == "" }
func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets RequestID travel as a plain UUID string in JSON documents.
func (id RequestID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *RequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the shared validation logic. Nil UUIDs are allowed here so store
// lookups can return proper "not found" errors; use IsNil() for business checks.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	return id, nil
}
