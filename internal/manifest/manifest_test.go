package manifest_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardrender/internal/catalog"
	"cardrender/internal/manifest"
)

func records() []catalog.Record {
	return []catalog.Record{
		catalog.NewRecord("A", map[string]any{"id": "A", "name": "Ash\nDrake", "cost": 3}),
		catalog.NewRecord("B", map[string]any{"id": "B", "name": `The "Bold"`, "cost": 1}),
	}
}

func TestHeaderHasSectionsColumn(t *testing.T) {
	b := manifest.NewBuilder("", manifest.Columns([]string{"id", "name", "cost"}))
	header := b.Header()
	if len(header) != 4 {
		t.Fatalf("expected fields + 1 columns, got %d", len(header))
	}
	if header[3] != manifest.SectionsColumn {
		t.Fatalf("last column = %q", header[3])
	}
}

func TestWriteToQuotesAndStrips(t *testing.T) {
	b := manifest.NewBuilder("", manifest.Columns([]string{"id", "name", "cost"}))
	recs := records()
	b.Add(recs[0], []string{"Icon", "Title"})
	b.Add(recs[1], nil)

	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	want := strings.Join([]string{
		`"id","name","cost","sections"`,
		`"A","AshDrake","3","Icon|Title"`,
		`"B","The ""Bold""","1",""`,
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("unexpected manifest:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestFlushWritesAndResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "RenderSummary.csv")
	b := manifest.NewBuilder(path, manifest.Columns([]string{"id", "name"}))
	for _, r := range records() {
		b.Add(r, []string{"Icon"})
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer cleared, got %d rows", b.Len())
	}

	table, err := manifest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0][0] != "A" || table.Rows[1][0] != "B" {
		t.Fatalf("rows out of order: %v", table.Rows)
	}
	if got := table.Layers(0); len(got) != 1 || got[0] != "Icon" {
		t.Fatalf("unexpected layers %v", got)
	}

	b.Add(records()[1], nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	table, err = manifest.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(table.Rows) != 1 || table.Layers(0) != nil {
		t.Fatalf("expected overwrite with one empty-layer row, got %v", table.Rows)
	}
}

func TestFlushRequiresPath(t *testing.T) {
	if err := manifest.NewBuilder("", nil).Flush(); err == nil {
		t.Fatal("expected error without path")
	}
}

func TestReadRejectsForeignTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := manifest.ReadFile(path); err == nil {
		t.Fatal("expected error for table without sections column")
	}
}

func TestCustomColumnAccessor(t *testing.T) {
	cols := []manifest.Column{{
		Name: "upper",
		Get:  func(r catalog.Record) string { return strings.ToUpper(r.ID) },
	}}
	b := manifest.NewBuilder("", cols)
	row := b.Add(catalog.NewRecord("abc", nil), nil)
	if row.Values[0] != "ABC" {
		t.Fatalf("accessor not applied: %v", row.Values)
	}
}
