// Package config loads, normalizes, and validates explainer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EXPLAINER_API_TOKEN. The Config type centralizes every knob the renderer,
// CLI, and API server need so working, output, and state directories are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
