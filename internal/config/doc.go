// Package config loads and validates application configuration.
//
// Values come from built-in defaults, an optional config.yaml, and AVATAR_
// prefixed environment variables, in increasing order of precedence. The
// resulting Config is validated with go-playground/validator before use.
package config
