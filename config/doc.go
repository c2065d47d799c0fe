// Package config loads runtime configuration from defaults, an optional
// YAML file, and SHEEN_* environment variables. The result is an
// explicit Config value handed down by the CLI; nothing in this package
// holds global state.
package config
