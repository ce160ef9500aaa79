// Package config loads, validates, and normalizes the TOML configuration for
// the suture daemon and CLI. Defaults live in defaults.go; validation rules in
// validate.go. All path fields are expanded (including ~) before use.
package config
