// Package registry holds the data-category policy table. A Snapshot is
// immutable; policy changes publish a new Snapshot and work that already
// started keeps the one it was handed.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	id "dsrengine/pkg/domain"
)

// LegalBasis is the GDPR Art. 6 ground under which a category is processed.
type LegalBasis string

const (
	LegalBasisConsent             LegalBasis = "consent"
	LegalBasisContract            LegalBasis = "contract"
	LegalBasisLegalObligation     LegalBasis = "legal_obligation"
	LegalBasisVitalInterests      LegalBasis = "vital_interests"
	LegalBasisPublicTask          LegalBasis = "public_task"
	LegalBasisLegitimateInterests LegalBasis = "legitimate_interests"
)

// IsValid reports whether b is a recognised legal basis.
func (b LegalBasis) IsValid() bool {
	switch b {
	case LegalBasisConsent, LegalBasisContract, LegalBasisLegalObligation,
		LegalBasisVitalInterests, LegalBasisPublicTask, LegalBasisLegitimateInterests:
		return true
	}
	return false
}

// Category is the policy for one class of personal data.
type Category struct {
	ID          string
	Description string
	LegalBasis  LegalBasis
	// Retention is how long records are kept; 0 means indefinitely.
	Retention time.Duration
	// Deletable=false means the category is anonymized and never erased.
	Deletable       bool
	Anonymization   string
	AnonymizeFields []string
}

// FiniteRetention reports whether the retention sweeper applies to c.
func (c Category) FiniteRetention() bool {
	return c.Retention > 0
}

// Purpose is a consent purpose and the categories it covers.
type Purpose struct {
	ID          string
	Description string
	Categories  []string
}

// Handler is the per-category capability bound at startup.
type Handler interface {
	// Collect returns the user's records in a JSON-encodable form.
	Collect(ctx context.Context, userID id.UserID) (any, error)
	// Erase removes the user's records and returns how many were removed.
	Erase(ctx context.Context, userID id.UserID) (int, error)
	// Anonymize irreversibly de-identifies the user's records and returns how
	// many changed. Already anonymized records are left alone.
	Anonymize(ctx context.Context, userID id.UserID) (int, error)
}

// RetentionHandler is implemented by handlers that can expire records by age.
type RetentionHandler interface {
	EraseBefore(ctx context.Context, cutoff time.Time) (int, error)
	AnonymizeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ParseRetention accepts a Go duration ("720h"), a day count ("30d") or "infinite".
func ParseRetention(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, fmt.Errorf("retention is required")
	case strings.EqualFold(s, "infinite"):
		return 0, nil
	case strings.HasSuffix(s, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid retention %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid retention %q", s)
	}
	return d, nil
}

// FormatRetention renders a retention the way ParseRetention reads it.
func FormatRetention(d time.Duration) string {
	if d <= 0 {
		return "infinite"
	}
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}
