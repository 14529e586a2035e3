// Package config loads and validates the monitor's YAML configuration.
//
// Loading is a three-step pipeline: Load (read + env expansion),
// LoadWithDefaults (fill optional fields), LoadAndValidate (reject
// inconsistent values). Binaries should only use LoadAndValidate.
package config
