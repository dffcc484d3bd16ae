package privacy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StrategySuite struct {
	suite.Suite
	anon *Anonymizer
	data map[string]any
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategySuite))
}

func (s *StrategySuite) SetupTest() {
	s.anon = NewAnonymizerWithKey([]byte("0123456789abcdef0123456789abcdef"))
	s.data = map[string]any{
		"card_last4": "4242",
		"amount":     1999,
		"login_ip":   "198.51.100.23",
	}
}

func (s *StrategySuite) TestRedact() {
	out, err := s.anon.Apply(StrategyRedact, []string{"card_last4"}, s.data)
	s.Require().NoError(err)
	s.Equal("[redacted]", out["card_last4"])
	s.Equal(1999, out["amount"])
	s.Equal("4242", s.data["card_last4"], "input must not be mutated")
}

func (s *StrategySuite) TestHashIsKeyedAndStable() {
	out, err := s.anon.Apply(StrategyHash, nil, s.data)
	s.Require().NoError(err)

	hashed, ok := out["card_last4"].(string)
	s.Require().True(ok)
	s.True(strings.HasPrefix(hashed, "blake2b:"))
	s.NotContains(hashed, "4242")

	other := NewAnonymizerWithKey([]byte("fedcba9876543210fedcba9876543210"))
	out2, err := other.Apply(StrategyHash, nil, s.data)
	s.Require().NoError(err)
	s.NotEqual(out["card_last4"], out2["card_last4"])
}

func (s *StrategySuite) TestPseudonymIsStableAndIdempotent() {
	p := s.anon.Pseudonym("u1")
	s.Equal(p, s.anon.Pseudonym("u1"))
	s.Equal(p, s.anon.Pseudonym(p))
	s.NotEqual(p, s.anon.Pseudonym("u2"))
}

func (s *StrategySuite) TestTruncateIPDefaultsToIPFields() {
	out, err := s.anon.Apply(StrategyTruncateIP, nil, s.data)
	s.Require().NoError(err)
	s.Equal("198.51.100.0", out["login_ip"])
	s.Equal("4242", out["card_last4"])
}

func (s *StrategySuite) TestDrop() {
	out, err := s.anon.Apply(StrategyDrop, []string{"card_last4", "missing"}, s.data)
	s.Require().NoError(err)
	s.NotContains(out, "card_last4")
	s.Contains(out, "amount")
}

func (s *StrategySuite) TestUnknownStrategy() {
	_, err := s.anon.Apply("shuffle", nil, s.data)
	s.Error(err)
	s.False(IsKnownStrategy("shuffle"))
}

func TestStrategiesAreIdempotent(t *testing.T) {
	anon, err := NewAnonymizer()
	require.NoError(t, err)
	data := map[string]any{"email": "a@example.com", "ip": "203.0.113.9", "visits": 3}

	for _, strategy := range Strategies() {
		t.Run(strategy, func(t *testing.T) {
			once, err := anon.Apply(strategy, nil, data)
			require.NoError(t, err)
			twice, err := anon.Apply(strategy, nil, once)
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}
