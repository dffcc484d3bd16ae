package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
)

const testPolicy = `
categories:
  - id: contact_info
    legal_basis: contract
    retention: 30d
    deletable: true
    anonymization: redact
  - id: payment_info
    legal_basis: legal_obligation
    retention: infinite
    deletable: false
    anonymization: hash
purposes:
  - id: marketing
    categories: [contact_info]
`

type stubHandler struct{ category string }

func (stubHandler) Collect(context.Context, id.UserID) (any, error)  { return nil, nil }
func (stubHandler) Erase(context.Context, id.UserID) (int, error)     { return 0, nil }
func (stubHandler) Anonymize(context.Context, id.UserID) (int, error) { return 0, nil }

func stubFactory(c Category) (Handler, error) { return stubHandler{category: c.ID}, nil }

type RegistrySuite struct {
	suite.Suite
	cfg Config
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	cfg, err := Parse([]byte(testPolicy))
	s.Require().NoError(err)
	s.cfg = cfg
}

func (s *RegistrySuite) TestLookup() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)
	snap := reg.Current()

	c, err := snap.Lookup("payment_info")
	s.Require().NoError(err)
	s.False(c.Deletable)
	s.False(c.FiniteRetention())
	s.Equal(LegalBasisLegalObligation, c.LegalBasis)

	_, err = snap.Lookup("shoe_size")
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownCategory))
}

func (s *RegistrySuite) TestListAllKeepsDeclarationOrder() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)

	all := reg.Current().ListAll()
	s.Require().Len(all, 2)
	s.Equal("contact_info", all[0].ID)
	s.Equal(30*24*time.Hour, all[0].Retention)
	s.Equal("payment_info", all[1].ID)
}

func (s *RegistrySuite) TestResolve() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)
	snap := reg.Current()

	s.Run("empty means all", func() {
		got, err := snap.Resolve(nil)
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("drops duplicates", func() {
		got, err := snap.Resolve([]string{"payment_info", "payment_info"})
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("unknown id fails", func() {
		_, err := snap.Resolve([]string{"contact_info", "shoe_size"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownCategory))
	})
}

func (s *RegistrySuite) TestPublishLeavesOldSnapshotIntact() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)
	before := reg.Current()

	next := s.cfg
	next.Categories = append([]CategoryConfig{}, s.cfg.Categories...)
	next.Categories[0].Retention = "7d"
	next.Categories = append(next.Categories, CategoryConfig{
		ID: "location", LegalBasis: "consent", Retention: "90d", Deletable: true, Anonymization: "drop",
	})
	_, err = reg.Publish(next)
	s.Require().NoError(err)

	after := reg.Current()
	s.Greater(after.Version(), before.Version())

	old, _ := before.Lookup("contact_info")
	s.Equal(30*24*time.Hour, old.Retention)
	_, err = before.Lookup("location")
	s.Error(err)

	updated, _ := after.Lookup("contact_info")
	s.Equal(7*24*time.Hour, updated.Retention)
}

func (s *RegistrySuite) TestFailedPublishKeepsCurrent() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)
	before := reg.Current()

	bad := Config{Categories: []CategoryConfig{{ID: "x", LegalBasis: "whim", Retention: "1d", Deletable: true}}}
	_, err = reg.Publish(bad)
	s.Error(err)
	s.Same(before, reg.Current())
}

func (s *RegistrySuite) TestBuildReportsEveryProblem() {
	cfg := Config{
		Categories: []CategoryConfig{
			{ID: "contact_info", LegalBasis: "contract", Retention: "30d", Deletable: true},
			{ID: "contact_info", LegalBasis: "contract", Retention: "30d", Deletable: true},
			{ID: "payment_info", LegalBasis: "legal_obligation", Retention: "infinite", Deletable: false},
			{ID: "Bad-Id", LegalBasis: "consent", Retention: "1d", Deletable: true},
		},
		Purposes: []PurposeConfig{{ID: "marketing", Categories: []string{"newsletter"}}},
	}

	_, err := Build(cfg, stubFactory)
	s.Require().Error(err)
	s.Contains(err.Error(), "declared twice")
	s.Contains(err.Error(), "need an anonymization strategy")
	s.Contains(err.Error(), "lowercase identifier")
	s.Contains(err.Error(), "unknown category newsletter")
}

func (s *RegistrySuite) TestBuildRequiresHandler() {
	_, err := Build(s.cfg, func(c Category) (Handler, error) {
		if c.ID == "payment_info" {
			return nil, nil
		}
		return stubHandler{}, nil
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "payment_info: no handler")
}

func (s *RegistrySuite) TestPurposes() {
	reg, err := New(s.cfg, stubFactory)
	s.Require().NoError(err)

	p, ok := reg.Current().Purpose("marketing")
	s.True(ok)
	s.Equal([]string{"contact_info"}, p.Categories)
	_, ok = reg.Current().Purpose("profiling")
	s.False(ok)
}

func (s *RegistrySuite) TestParseRejectsUnknownKeys() {
	_, err := Parse([]byte("categories:\n  - id: a\n    retension: 1d\n"))
	s.Error(err)
}

func TestParseRetention(t *testing.T) {
	cases := map[string]time.Duration{
		"infinite": 0,
		"30d":      30 * 24 * time.Hour,
		"36h":      36 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseRetention(in)
		if err != nil || got != want {
			t.Fatalf("ParseRetention(%q) = %v, %v; want %v", in, got, err, want)
		}
		if back, _ := ParseRetention(FormatRetention(got)); back != got {
			t.Fatalf("FormatRetention round trip for %q gave %v", in, back)
		}
	}
	for _, bad := range []string{"", "0d", "-1h", "forever"} {
		if _, err := ParseRetention(bad); err == nil {
			t.Fatalf("ParseRetention(%q) should fail", bad)
		}
	}
}

func TestDefaultPolicyFileLoads(t *testing.T) {
	cfg, err := LoadFile("../../config/categories.yaml")
	if err != nil {
		t.Fatal(err)
	}
	snap, err := Build(cfg, stubFactory)
	if err != nil {
		t.Fatal(err)
	}
	c, err := snap.Lookup("payment_info")
	if err != nil || c.Deletable {
		t.Fatalf("payment_info must be declared non-deletable, got %+v, %v", c, err)
	}
}
