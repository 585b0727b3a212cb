// Package main hosts the plansync CLI entrypoint and command graph.
//
// The Cobra command tree drives the sync orchestrator against the remote
// planner, searches and inspects the local SQLite store, and scaffolds the
// configuration file. Configuration, logging, and store access are resolved
// once per invocation in commandContext so subcommands stay declarative.
package main
