// Package preflight provides readiness checks for the filesystem paths,
// catalog and scene layout a batch depends on.
//
// The CLI "cardrender check" command prints every result; "cardrender
// render" runs the same checks and refuses to start when any fails.
package preflight
