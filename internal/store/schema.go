package store

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

type column struct {
	name string
	ddl  string
}

// additiveColumns are created on open when missing. Columns are only ever
// added; existing data is never rewritten or dropped.
var additiveColumns = map[string][]column{
	"parts": {
		{"lead_no", "TEXT"},
		{"order_no", "TEXT"},
		{"row_id", "TEXT"},
		{"part_id", "TEXT"},
		{"price_each", "REAL"},
		{"price_total", "REAL"},
		{"status_code", "TEXT"},
		{"status_icon", "TEXT"},
		{"order_date", "TEXT"},
		{"is_to_order", "INTEGER NOT NULL DEFAULT 0"},
		{"is_ordered", "INTEGER NOT NULL DEFAULT 0"},
		{"is_delivered", "INTEGER NOT NULL DEFAULT 0"},
		{"is_backorder", "INTEGER NOT NULL DEFAULT 0"},
		{"is_mandatory", "INTEGER NOT NULL DEFAULT 0"},
		{"is_price_checked", "INTEGER NOT NULL DEFAULT 0"},
	},
}

// additiveTables fixes the order in which additiveColumns are applied.
var additiveTables = []string{"parts"}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, table := range additiveTables {
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, col := range additiveColumns[table] {
			if existing[col.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
