// Package services defines shared utilities consumed by the sync pipeline and
// the remote integration.
//
// Key responsibilities:
//   - Context helpers that stamp order IDs, pipeline stage names, and sync run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into record-level (transport, shape, parse) and run-level (persistence)
//     outcomes.
//
// Use these helpers when wiring new pipeline steps so failure isolation and
// observability stay uniform across records.
package services
