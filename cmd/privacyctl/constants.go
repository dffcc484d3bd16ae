package main

import "time"

// Defaults for CLI commands.
const (
	DefaultRegistryFile = "config/categories.yaml"
	DefaultTokenTTL     = 15 * time.Minute
)
