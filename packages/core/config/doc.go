// Package config handles configuration loading and management for apischema.
//
// It provides functionality for:
//   - Loading configuration from .apischema.config.json, .apischemarc or
//     apischema.yaml files
//   - Default configuration values
//   - Validation and merging of overrides
package config
