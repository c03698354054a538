package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDField is the default name of the identifier column.
const IDField = "id"

// ErrDuplicateID reports two records sharing an identifier.
var ErrDuplicateID = errors.New("duplicate card id")

// Record is one catalog entry: a unique identifier plus named scalar fields.
type Record struct {
	ID     string
	values map[string]any
}

// NewRecord builds a record. The values map is copied.
func NewRecord(id string, values map[string]any) Record {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Record{ID: id, values: copied}
}

// Value returns the raw value for field.
func (r Record) Value(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// String renders the field as manifest text. Missing and nil fields are empty.
func (r Record) String(field string) string {
	v, ok := r.values[field]
	if !ok {
		return ""
	}
	return formatScalar(v)
}

// Bool interprets the field as a flag. Unparseable values are false.
func (r Record) Bool(field string) bool {
	switch v := r.values[field].(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	case []byte:
		parsed, err := strconv.ParseBool(strings.TrimSpace(string(v)))
		return err == nil && parsed
	default:
		return false
	}
}

func formatScalar(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case bool:
		return strconv.FormatBool(value)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

// Catalog is an ordered, read-only collection of records with a fixed field
// list. Field order defines the manifest columns.
type Catalog struct {
	fields  []string
	records []Record
	index   map[string]int
}

// New assembles a catalog. Identifiers must be unique and non-empty.
func New(fields []string, records []Record) (*Catalog, error) {
	index := make(map[string]int, len(records))
	for i, record := range records {
		if strings.TrimSpace(record.ID) == "" {
			return nil, fmt.Errorf("record %d: empty card id", i)
		}
		if prev, ok := index[record.ID]; ok {
			return nil, fmt.Errorf("%w %q (records %d and %d)", ErrDuplicateID, record.ID, prev, i)
		}
		index[record.ID] = i
	}
	return &Catalog{
		fields:  append([]string(nil), fields...),
		records: append([]Record(nil), records...),
		index:   index,
	}, nil
}

// Fields returns the ordered field names.
func (c *Catalog) Fields() []string {
	return append([]string(nil), c.fields...)
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// At returns the record at position i in iteration order.
func (c *Catalog) At(i int) Record {
	return c.records[i]
}

// Lookup finds a record by identifier.
func (c *Catalog) Lookup(id string) (Record, bool) {
	i, ok := c.index[id]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}

// Records returns the records in iteration order.
func (c *Catalog) Records() []Record {
	return append([]Record(nil), c.records...)
}
