// Package pipeline drives batch exports: for each card in the requested
// range it loads the card into the scene host, plans its reveal steps,
// captures every step on the calling goroutine and hands the pixels to the
// post-processing pool, then records the card's manifest row.
//
// The Orchestrator is cooperative. Start opens a batch, each Tick renders
// exactly one card, and the tick after the last card flushes the manifest,
// waits for outstanding image writes, and returns the orchestrator to Idle.
// Stop may be called from any goroutine; it cancels outstanding writes
// without waiting for them and discards the unflushed manifest.
package pipeline
