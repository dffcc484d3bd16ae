package registry

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the policy file layout.
type Config struct {
	Categories []CategoryConfig `yaml:"categories"`
	Purposes   []PurposeConfig  `yaml:"purposes"`
}

// CategoryConfig is one category entry of the policy file.
type CategoryConfig struct {
	ID              string   `yaml:"id"`
	Description     string   `yaml:"description"`
	LegalBasis      string   `yaml:"legal_basis"`
	Retention       string   `yaml:"retention"`
	Deletable       bool     `yaml:"deletable"`
	Anonymization   string   `yaml:"anonymization"`
	AnonymizeFields []string `yaml:"anonymize_fields"`
}

// PurposeConfig is one purpose entry of the policy file.
type PurposeConfig struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Categories  []string `yaml:"categories"`
}

// LoadFile reads and parses a policy file.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read registry file: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a policy document. Unknown keys are rejected.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse registry: %w", err)
	}
	if len(cfg.Categories) == 0 {
		return Config{}, errors.New("parse registry: no categories declared")
	}
	return cfg, nil
}
