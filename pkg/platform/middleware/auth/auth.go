// Package auth authenticates callers with HS256 bearer tokens and
// authorizes per-user access.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/httputil"
	"dsrengine/pkg/requestcontext"
)

// Claims are the token claims the engine reads.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies HS256 tokens.
type Validator struct {
	key    []byte
	issuer string
}

// NewValidator creates a validator. issuer is enforced when non-empty.
func NewValidator(signingKey, issuer string) *Validator {
	return &Validator{key: []byte(signingKey), issuer: issuer}
}

// Validate parses and verifies token, returning the principal it names.
func (v *Validator) Validate(token string) (requestcontext.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := new(Claims)
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...); err != nil {
		return requestcontext.Principal{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return requestcontext.Principal{}, errors.New("token has no subject")
	}
	return requestcontext.Principal{Subject: claims.Subject, Roles: claims.Roles}, nil
}

// Issue signs a token for subject. Used by privacyctl and tests.
func (v *Validator) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal in the request context.
func RequireAuth(v *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			principal, err := v.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// Authorizer decides whether the caller may act on a user's data.
type Authorizer struct {
	adminRole string
}

// NewAuthorizer creates an authorizer; holders of adminRole may act on any user.
func NewAuthorizer(adminRole string) *Authorizer {
	return &Authorizer{adminRole: adminRole}
}

// AuthorizeUser returns CodeForbidden when an authenticated caller acts on
// another user's data without the admin role. Without a principal in ctx
// authentication is disabled and every call is allowed.
func (a *Authorizer) AuthorizeUser(ctx context.Context, userID string) error {
	if a == nil {
		return nil
	}
	p, ok := requestcontext.PrincipalFrom(ctx)
	if !ok {
		return nil
	}
	if p.Subject == userID || (a.adminRole != "" && p.HasRole(a.adminRole)) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, "caller may not act on this user")
}
