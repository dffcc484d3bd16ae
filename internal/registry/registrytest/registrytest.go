// Package registrytest builds small registries for package tests.
package registrytest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dsrengine/internal/registry"
)

// Policy is a compact policy with one deletable and one non-deletable
// category per anonymization style, plus the marketing and analytics purposes.
const Policy = `
categories:
  - id: contact_info
    legal_basis: contract
    retention: 730d
    deletable: true
    anonymization: redact
  - id: activity_data
    legal_basis: legitimate_interests
    retention: 180d
    deletable: true
    anonymization: hash
  - id: access_logs
    legal_basis: legal_obligation
    retention: 365d
    deletable: false
    anonymization: truncate_ip
  - id: payment_info
    legal_basis: legal_obligation
    retention: infinite
    deletable: false
    anonymization: hash
    anonymize_fields: [cardholder, card_last4]
purposes:
  - id: marketing
    categories: [contact_info, activity_data]
  - id: analytics
    categories: [activity_data]
`

// Config parses Policy.
func Config(t testing.TB) registry.Config {
	t.Helper()
	cfg, err := registry.Parse([]byte(Policy))
	require.NoError(t, err)
	return cfg
}

// New builds a registry from Policy with handlers from factory.
func New(t testing.TB, factory registry.HandlerFactory) *registry.Registry {
	t.Helper()
	reg, err := registry.New(Config(t), factory)
	require.NoError(t, err)
	return reg
}
