// Package decompose plans the per-card reveal sequence: which sub-elements
// carry content, which are skipped as empty, and in what order each layer is
// isolated for capture.
package decompose
