package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names registered by the blank imports above.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// LoadSQL runs query against the database and turns each row into a record.
// Columns become fields in select order; idField names the identifier column.
func LoadSQL(ctx context.Context, driver, dsn, query, idField string) (*Catalog, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if idField == "" {
		idField = IDField
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	defer db.Close()

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return nil, fmt.Errorf("configure sqlite catalog: %w", err)
		}
	}

	var cat *Catalog
	err = retryOnBusy(ctx, func() error {
		var loadErr error
		cat, loadErr = queryCatalog(ctx, db, query, idField)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return cat, nil
}

func queryCatalog(ctx context.Context, db *sql.DB, query, idField string) (*Catalog, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read catalog columns: %w", err)
	}
	idIndex := -1
	for i, column := range columns {
		if column == idField {
			idIndex = i
			break
		}
	}
	if idIndex < 0 {
		return nil, fmt.Errorf("catalog query returned no %q column (have %s)", idField, strings.Join(columns, ", "))
	}

	var records []Record
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		values := make(map[string]any, len(columns))
		for i, column := range columns {
			values[column] = normalizeSQLValue(raw[i])
		}
		id := strings.TrimSpace(formatScalar(values[idField]))
		if id == "" {
			return nil, fmt.Errorf("catalog row %d: empty %q column", len(records), idField)
		}
		records = append(records, NewRecord(id, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return New(columns, records)
}

// normalizeSQLValue converts driver byte slices to strings so records hold
// plain scalars regardless of backend.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
