// Package catalog loads the ordered card metadata the pipeline iterates.
//
// A Catalog is read-only once built: records keep their load order and the
// field list defines the manifest columns. Files (YAML, TOML), SQLite and
// PostgreSQL sources are supported.
package catalog
