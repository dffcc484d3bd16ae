package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dsrengine/internal/subjectdata"
	id "dsrengine/pkg/domain"
)

// RecordStore defines methods for seeding subject records
type RecordStore interface {
	Insert(ctx context.Context, record subjectdata.Record) error
}

// IdentityStore defines methods for seeding verified identities
type IdentityStore interface {
	Set(userID id.UserID, verified bool, verifiedAt time.Time)
}

// Seeder populates in-memory stores with demo data
type Seeder struct {
	records    RecordStore
	identities IdentityStore
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a new seeder
func New(records RecordStore, identities IdentityStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		records:    records,
		identities: identities,
		logger:     logger,
		now:        time.Now,
	}
}

// demoRecord is seeded for every demo user; age places it inside or outside
// a category's retention window.
type demoRecord struct {
	category string
	age      time.Duration
	data     map[string]any
}

var demoRecords = []demoRecord{
	{"contact_info", 24 * time.Hour, map[string]any{"email": "demo@example.com", "phone": "+15555550100"}},
	{"activity_data", 2 * time.Hour, map[string]any{"event": "login", "device": "ios"}},
	{"activity_data", 200 * 24 * time.Hour, map[string]any{"event": "purchase", "device": "web"}},
	{"location", 100 * 24 * time.Hour, map[string]any{"lat": 52.52, "lon": 13.40}},
	{"access_logs", 400 * 24 * time.Hour, map[string]any{"path": "/settings", "ip": "203.0.113.77"}},
	{"payment_info", 30 * 24 * time.Hour, map[string]any{"cardholder": "Demo User", "card_last4": "4242", "billing_email": "demo@example.com", "amount": 1999}},
}

// SeedAll populates all stores with demo data
func (s *Seeder) SeedAll(ctx context.Context, users []id.UserID) error {
	s.logger.Info("seeding demo data...")
	now := s.now()

	for i, userID := range users {
		// every third demo user has a stale verification
		verifiedAt := now.Add(-time.Minute)
		if i%3 == 2 {
			verifiedAt = now.Add(-24 * time.Hour)
		}
		s.identities.Set(userID, true, verifiedAt)

		for _, d := range demoRecords {
			if err := s.records.Insert(ctx, subjectdata.Record{
				UserID:    userID,
				Category:  d.category,
				Data:      d.data,
				CreatedAt: now.Add(-d.age),
			}); err != nil {
				return fmt.Errorf("failed to seed %s for %s: %w", d.category, userID, err)
			}
		}
	}

	s.logger.Info("demo data seeded successfully",
		"users", len(users),
		"records", len(users)*len(demoRecords),
	)
	return nil
}
