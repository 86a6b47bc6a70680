// Package config loads engine settings from an optional YAML file and
// TASKPULSE_* environment variables, applies defaults and validates the
// result before any component starts.
package config
