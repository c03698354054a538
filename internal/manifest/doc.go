// Package manifest accumulates one row per exported card and writes the
// audit table that pairs catalog metadata with the layer images actually
// produced.
//
// Every cell is double-quoted. Field values have carriage returns and
// newlines stripped, embedded quotes doubled, and the final "sections" column
// holds the card's layer labels joined with "|" in capture order.
package manifest
