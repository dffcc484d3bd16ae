// Package identity verifies that a user id belongs to a verified identity.
// The identity provider itself is external; this package only consumes it.
package identity

import (
	"context"
	"time"

	id "dsrengine/pkg/domain"
)

//go:generate mockgen -source=identity.go -destination=mocks/mocks.go -package=mocks Verifier

// Identity is the verification state reported by the provider.
type Identity struct {
	UserID     id.UserID `json:"user_id"`
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at"`
}

// FreshAt reports whether the identity is verified and its verification is no
// older than window at now.
func (i Identity) FreshAt(now time.Time, window time.Duration) bool {
	if !i.Verified || i.VerifiedAt.IsZero() {
		return false
	}
	return now.Sub(i.VerifiedAt) <= window
}

// Verifier looks up a user's verification state.
// Error Contract:
// - sentinel.ErrNotFound when the provider does not know the user
// - errors wrapping sentinel.ErrUnavailable when the provider cannot answer
type Verifier interface {
	Verify(ctx context.Context, userID id.UserID) (Identity, error)
}
