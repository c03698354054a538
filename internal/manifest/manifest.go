package manifest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"cardrender/internal/catalog"
	"cardrender/internal/fileutil"
)

// SectionsColumn names the trailing layer-list column.
const SectionsColumn = "sections"

// LayerSeparator joins layer labels within the sections column.
const LayerSeparator = "|"

// Column is one named manifest field and how to read it from a record.
type Column struct {
	Name string
	Get  func(catalog.Record) string
}

// Columns maps field names to columns reading the same-named record field.
func Columns(fields []string) []Column {
	cols := make([]Column, 0, len(fields))
	for _, field := range fields {
		name := field
		cols = append(cols, Column{
			Name: name,
			Get:  func(r catalog.Record) string { return r.String(name) },
		})
	}
	return cols
}

// Row is one card's manifest entry.
type Row struct {
	ID     string
	Values []string
	Layers []string
}

// Builder buffers rows until Flush. Safe for concurrent use.
type Builder struct {
	path    string
	columns []Column

	mu   sync.Mutex
	rows []Row
}

// NewBuilder creates a builder writing to path with the given column order.
func NewBuilder(path string, columns []Column) *Builder {
	return &Builder{path: path, columns: append([]Column(nil), columns...)}
}

// Path returns the output path.
func (b *Builder) Path() string { return b.path }

// Header returns the column names including the sections column.
func (b *Builder) Header() []string {
	header := make([]string, 0, len(b.columns)+1)
	for _, col := range b.columns {
		header = append(header, col.Name)
	}
	return append(header, SectionsColumn)
}

// Add appends a row for record with its ordered layer labels.
func (b *Builder) Add(record catalog.Record, layers []string) Row {
	row := Row{
		ID:     record.ID,
		Values: make([]string, len(b.columns)),
		Layers: append([]string(nil), layers...),
	}
	for i, col := range b.columns {
		if col.Get != nil {
			row.Values[i] = col.Get(record)
		}
	}
	b.mu.Lock()
	b.rows = append(b.rows, row)
	b.mu.Unlock()
	return row
}

// Len reports buffered rows.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Rows returns a copy of the buffered rows in insertion order.
func (b *Builder) Rows() []Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Row(nil), b.rows...)
}

// Reset drops buffered rows.
func (b *Builder) Reset() {
	b.mu.Lock()
	b.rows = nil
	b.mu.Unlock()
}

// WriteTo serializes the header and buffered rows.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	rows := b.Rows()
	bw := bufio.NewWriter(w)
	var n int64
	write := func(cells []string) error {
		line := formatLine(cells)
		written, err := bw.WriteString(line)
		n += int64(written)
		return err
	}
	if err := write(b.Header()); err != nil {
		return n, err
	}
	for _, row := range rows {
		cells := append(append([]string(nil), row.Values...), strings.Join(row.Layers, LayerSeparator))
		if err := write(cells); err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Flush writes the manifest atomically to its path, overwriting any previous
// file, then clears the buffer.
func (b *Builder) Flush() error {
	if b.path == "" {
		return errors.New("manifest: output path not set")
	}
	err := fileutil.WriteAtomic(b.path, 0o644, func(w io.Writer) error {
		_, err := b.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("flush manifest: %w", err)
	}
	b.Reset()
	return nil
}

func formatLine(cells []string) string {
	var sb strings.Builder
	for i, cell := range cells {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(escape(cell))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
	return sb.String()
}

var cellReplacer = strings.NewReplacer("\r", "", "\n", "", `"`, `""`)

func escape(value string) string {
	return cellReplacer.Replace(value)
}

// Table is a parsed manifest.
type Table struct {
	Header []string
	Rows   [][]string
}

// Layers splits the sections cell of row i.
func (t Table) Layers(i int) []string {
	row := t.Rows[i]
	if len(row) == 0 || row[len(row)-1] == "" {
		return nil
	}
	return strings.Split(row[len(row)-1], LayerSeparator)
}

// Read parses a manifest.
func Read(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("parse manifest: %w", err)
	}
	if len(records) == 0 {
		return Table{}, errors.New("manifest is empty")
	}
	header := records[0]
	if header[len(header)-1] != SectionsColumn {
		return Table{}, fmt.Errorf("manifest: last column is %q, want %q", header[len(header)-1], SectionsColumn)
	}
	return Table{Header: header, Rows: records[1:]}, nil
}

// ReadFile parses the manifest at path.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()
	return Read(f)
}
