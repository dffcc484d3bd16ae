package privacy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Strategy names accepted in the category registry.
const (
	StrategyRedact     = "redact"
	StrategyHash       = "hash"
	StrategyTruncateIP = "truncate_ip"
	StrategyDrop       = "drop"
)

const (
	redactedValue = "[redacted]"
	hashPrefix    = "blake2b:"
)

// Strategies lists every supported strategy name.
func Strategies() []string {
	return []string{StrategyRedact, StrategyHash, StrategyTruncateIP, StrategyDrop}
}

// IsKnownStrategy reports whether name is a supported strategy.
func IsKnownStrategy(name string) bool {
	return slices.Contains(Strategies(), name)
}

// Anonymizer applies strategies to record fields. The hash key lives only in
// memory, so hashed values cannot be linked across process restarts.
type Anonymizer struct {
	key []byte
}

// NewAnonymizer creates an Anonymizer with a fresh random hash key.
func NewAnonymizer() (*Anonymizer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate anonymization key: %w", err)
	}
	return &Anonymizer{key: key}, nil
}

// NewAnonymizerWithKey is used in tests that need deterministic hashes.
func NewAnonymizerWithKey(key []byte) *Anonymizer {
	return &Anonymizer{key: slices.Clone(key)}
}

// Apply returns a copy of data with strategy applied to fields. An empty
// field list selects every field, except for truncate_ip which defaults to
// fields named "ip" or ending in "_ip". Applying a strategy twice yields
// the same record as applying it once.
func (a *Anonymizer) Apply(strategy string, fields []string, data map[string]any) (map[string]any, error) {
	out := maps.Clone(data)
	if out == nil {
		out = map[string]any{}
	}
	targets := selectFields(strategy, fields, out)

	switch strategy {
	case StrategyRedact:
		for _, f := range targets {
			out[f] = redactedValue
		}
	case StrategyHash:
		for _, f := range targets {
			out[f] = a.hash(out[f])
		}
	case StrategyTruncateIP:
		for _, f := range targets {
			if s, ok := out[f].(string); ok {
				out[f] = AnonymizeIP(s)
			} else {
				out[f] = "invalid"
			}
		}
	case StrategyDrop:
		for _, f := range targets {
			delete(out, f)
		}
	default:
		return nil, fmt.Errorf("unknown anonymization strategy %q", strategy)
	}
	return out, nil
}

// Pseudonym replaces an identifier with its keyed hash. Pseudonyms are
// stable for the life of the process only.
func (a *Anonymizer) Pseudonym(value string) string {
	return a.hash(value)
}

func (a *Anonymizer) hash(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.HasPrefix(s, hashPrefix) {
		return s
	}
	h, _ := blake2b.New256(a.key) // key length is always valid
	h.Write([]byte(s))
	return hashPrefix + hex.EncodeToString(h.Sum(nil)[:16])
}

func selectFields(strategy string, fields []string, data map[string]any) []string {
	if len(fields) > 0 {
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if _, ok := data[f]; ok {
				out = append(out, f)
			}
		}
		return out
	}
	out := make([]string, 0, len(data))
	for f := range data {
		if strategy == StrategyTruncateIP && f != "ip" && !strings.HasSuffix(f, "_ip") {
			continue
		}
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
