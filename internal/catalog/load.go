package catalog

import (
	"context"
	"fmt"
	"slices"

	"cardrender/internal/config"
)

// Load opens the catalog described by cfg. When cfg.Fields is set, the
// catalog is projected onto those fields in that order.
func Load(ctx context.Context, cfg config.Catalog) (*Catalog, error) {
	var (
		cat *Catalog
		err error
	)
	switch cfg.Source {
	case config.SourceFile:
		cat, err = LoadFile(cfg.Path, cfg.IDField)
	case config.SourceSQLite:
		cat, err = LoadSQL(ctx, DriverSQLite, cfg.DSN, cfg.Query, cfg.IDField)
	case config.SourcePostgres:
		cat, err = LoadSQL(ctx, DriverPostgres, cfg.DSN, cfg.Query, cfg.IDField)
	default:
		return nil, fmt.Errorf("catalog source %q not supported", cfg.Source)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.Fields) > 0 {
		return cat.Project(cfg.Fields)
	}
	return cat, nil
}

// Project returns a catalog exposing only fields, in the given order. Every
// field must exist in the source catalog.
func (c *Catalog) Project(fields []string) (*Catalog, error) {
	for _, field := range fields {
		if !slices.Contains(c.fields, field) {
			return nil, fmt.Errorf("catalog has no field %q", field)
		}
	}
	return New(fields, c.records)
}
