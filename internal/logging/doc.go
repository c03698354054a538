// Package logging assembles structured slog loggers and formatting helpers used
// across cardrender.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so pipeline code can tag log lines
// with run and card identifiers. The console handler folds run_id, card_id and
// layer into a readable subject so a batch reads as a sequence of cards.
package logging
