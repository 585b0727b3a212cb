// Package store persists orders, parts, sections, and employees in SQLite.
//
// One Record is written per transaction. Parts and sections are replaced
// wholesale for their order; orders and employees are upserted by id. The
// orders_fts index follows the orders table through triggers.
package store
