// Package config loads, normalizes, and validates cardrender configuration.
//
// Configuration lives in TOML (default ~/.config/cardrender/config.toml, or
// ./cardrender.toml when present). Load applies repository defaults, expands
// ~ and relative paths to absolute ones, pulls the catalog DSN and MQTT broker
// from the environment when unset, and rejects values the export pipeline
// cannot honor. The render range is not validated here; the pipeline clamps
// it against the catalog size at batch start.
package config
