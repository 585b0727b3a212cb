// Package config loads, normalizes, and validates plansync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as PLANSO_BASE_URL and PLANSO_COOKIE_JAR. The
// Config type centralizes every knob the sync pipeline and CLI need so the
// database location, remote endpoint, and worker settings are discovered in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
