// Package config manages user-level settings stored at ~/.dev/config.yaml.
// Values can be overridden with DEV_* environment variables, for example
// DEV_HTTP_TIMEOUT=30s.
package config
