package main

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxCellWidth = 48

var headerCaser = cases.Title(language.English)

// displayHeaders turns field names such as "card_name" into "Card Name".
func displayHeaders(fields []string) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		words := strings.FieldsFunc(field, func(r rune) bool { return r == '_' || r == '-' })
		out[i] = headerCaser.String(strings.Join(words, " "))
	}
	return out
}

func truncateCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if utf8.RuneCountInString(value) <= maxCellWidth {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxCellWidth-1]) + "…"
}
