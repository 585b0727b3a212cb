// Package syncer drives the per-order pipeline over a bounded worker pool.
//
// Each worker owns one remote session, created lazily on its first order and
// reused for the worker's lifetime. Workers fetch, unwrap, parse, and map an
// order into a record.Record and hand it back as an Outcome; only the
// collecting goroutine writes to the store, one transaction per order, in
// completion order. A fetch or parse failure ends that order's pipeline
// alone. A persistence failure aborts the run.
//
// Stopping the run's context halts submission of new orders; orders already
// handed to a worker run to completion.
package syncer
