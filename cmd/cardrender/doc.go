// Package main hosts the cardrender CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once per invocation, opens the
// card catalog and the software scene host, and drives the batch pipeline
// from the terminal. Subcommands cover batch rendering, single sample
// captures, catalog and manifest inspection, environment checks and config
// scaffolding.
//
// Keep this package thin. Behaviour belongs in the internal packages; the
// commands here only parse flags, wire collaborators and format output.
package main
