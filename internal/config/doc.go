// Package config loads, validates, and normalizes Fieldline configuration
// from TOML files with sensible defaults for every optional value.
package config
