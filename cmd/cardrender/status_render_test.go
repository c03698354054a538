package main

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Catalog", statusError, "not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Catalog:", "[ERROR] not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Batch", statusOK, "completed", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
	if got := renderStatusLine("Batch", statusWarn, "", false); !strings.HasSuffix(got, "[WARN]") {
		t.Fatalf("empty message should leave only the tag, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestDisplayHeaders(t *testing.T) {
	got := displayHeaders([]string{"id", "card_name", "mana-cost", "sections"})
	want := []string{"Id", "Card Name", "Mana Cost", "Sections"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("displayHeaders = %v, want %v", got, want)
	}
}

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("short\nline"); got != "short line" {
		t.Fatalf("truncateCell = %q", got)
	}
	long := strings.Repeat("x", maxCellWidth+10)
	got := truncateCell(long)
	if n := len([]rune(got)); n != maxCellWidth {
		t.Fatalf("truncated length = %d, want %d", n, maxCellWidth)
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"#", "Name"}, [][]string{{"0"}, {"1", "Beta"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "Beta") || !strings.Contains(out, "Name") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
