package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"plansync/internal/record"
)

// SectionInfo summarizes one stored section without its payload.
type SectionInfo struct {
	Name        string
	ContentType string
	Size        int
	SyncedAt    time.Time
}

// ApplyRecord writes one record in a single transaction: the order row,
// discovered employees, and, when their sub-pipelines ran, the full
// replacement of the order's parts and sections.
func (s *Store) ApplyRecord(ctx context.Context, rec record.Record) error {
	ctx = ensureContext(ctx)
	if rec.Order.ID <= 0 {
		return persistErr("apply record", fmt.Errorf("invalid order id %d", rec.Order.ID))
	}
	return persistErr("apply record", retryOnBusy(ctx, func() error {
		return s.applyRecord(ctx, rec)
	}))
}

func (s *Store) applyRecord(ctx context.Context, rec record.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertOrder(ctx, tx, rec.Order); err != nil {
		return err
	}
	for _, emp := range rec.Employees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO employees (id, name) VALUES (?, ?)
             ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			emp.ID, emp.Name,
		); err != nil {
			return fmt.Errorf("upsert employee %d: %w", emp.ID, err)
		}
	}
	if rec.PartsFetched {
		if err := replaceParts(ctx, tx, rec.Order.ID, rec.Parts); err != nil {
			return err
		}
	}
	if rec.SectionsFetched {
		if err := replaceSections(ctx, tx, rec.Order.ID, rec.Sections); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

func upsertOrder(ctx context.Context, tx *sql.Tx, o record.Order) error {
	synced := o.SyncedAt
	if synced.IsZero() {
		synced = time.Now()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (`+OrderColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             short_name = excluded.short_name,
             plate = excluded.plate,
             person = excluded.person,
             phone = excluded.phone,
             email = excluded.email,
             damage = excluded.damage,
             project_status = excluded.project_status,
             station_id = excluded.station_id,
             station_state = excluded.station_state,
             shop_date = excluded.shop_date,
             repair_date = excluded.repair_date,
             finish_date = excluded.finish_date,
             planned_delivery_date = excluded.planned_delivery_date,
             parts_status = excluded.parts_status,
             missing_parts = excluded.missing_parts,
             est_hours_karo = excluded.est_hours_karo,
             est_hours_lack = excluded.est_hours_lack,
             est_hours_mech = excluded.est_hours_mech,
             fields_json = excluded.fields_json,
             vehicle_json = excluded.vehicle_json,
             last_synced_at = excluded.last_synced_at`,
		o.ID,
		o.ShortName,
		o.Plate,
		o.Person,
		o.Phone,
		o.Email,
		o.Damage,
		o.ProjectStatus,
		nullableInt64(o.StationID),
		nullableString(o.StationState),
		o.ShopDate,
		o.RepairDate,
		o.FinishDate,
		o.PlannedDate,
		o.PartsStatus,
		boolInt(o.MissingParts),
		nullableFloat(o.EstKaro),
		nullableFloat(o.EstLack),
		nullableFloat(o.EstMech),
		encodeJSON(nonNilMap(o.Fields)),
		encodeJSON(nonNilMap(o.VehicleInfo)),
		synced.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert order %d: %w", o.ID, err)
	}
	return nil
}

func replaceParts(ctx context.Context, tx *sql.Tx, orderID int64, parts []record.Part) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM parts WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("clear parts for order %d: %w", orderID, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO parts (order_id, `+partColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare part insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range record.DedupeParts(parts) {
		raw := p.Raw
		if raw == nil {
			raw = map[string]any{}
		}
		if _, err := stmt.ExecContext(ctx,
			orderID,
			p.PartNo,
			p.Description,
			nullableString(p.LeadNo),
			nullableString(p.OrderNo),
			nullableString(p.RowID),
			nullableString(p.PartID),
			nullableFloat(p.Qty),
			nullableFloat(p.PriceEach),
			nullableFloat(p.PriceTotal),
			nullableString(p.Status),
			nullableString(p.StatusCode),
			nullableString(p.StatusIcon),
			nullableString(p.OrderDate),
			nullableString(p.DeliveryDate),
			nullableString(p.ETADate),
			boolInt(p.IsMissing),
			boolInt(p.IsToOrder),
			boolInt(p.IsOrdered),
			boolInt(p.IsDelivered),
			boolInt(p.IsBackorder),
			boolInt(p.IsMandatory),
			boolInt(p.PriceChecked),
			encodeJSON(raw),
		); err != nil {
			return fmt.Errorf("insert part %q for order %d: %w", p.PartNo, orderID, err)
		}
	}
	return nil
}

func replaceSections(ctx context.Context, tx *sql.Tx, orderID int64, sections []record.Section) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_sections WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("clear sections for order %d: %w", orderID, err)
	}
	for _, sec := range sections {
		fetched := sec.FetchedAt
		if fetched.IsZero() {
			fetched = time.Now()
		}
		data := string(sec.Parsed)
		if data == "" {
			data = "{}"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO order_sections (order_id, section, content_type, raw_text, data_json, last_synced_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, sec.Name, sec.ContentType, sec.Raw, data, fetched.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert section %q for order %d: %w", sec.Name, orderID, err)
		}
	}
	return nil
}

// GetOrder returns the order with id, or nil when it does not exist.
func (s *Store) GetOrder(ctx context.Context, id int64) (*record.Order, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+OrderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get order", err)
	}
	return order, nil
}

// QueryOrders runs a SELECT over OrderColumns built by the caller with bound
// arguments.
func (s *Store) QueryOrders(ctx context.Context, query string, args ...any) ([]record.Order, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, persistErr("query orders", err)
	}
	defer rows.Close()

	var orders []record.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, persistErr("scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query orders", err)
	}
	return orders, nil
}

// MatchFullText returns the ids of orders matching an FTS5 expression. The
// caller is responsible for quoting user input.
func (s *Store) MatchFullText(ctx context.Context, expr string, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT rowid FROM orders_fts WHERE orders_fts MATCH ? LIMIT ?`, expr, limit)
	if err != nil {
		return nil, fmt.Errorf("full text match: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan full text id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("full text match: %w", err)
	}
	return ids, nil
}

// Parts lists an order's parts, missing parts first.
func (s *Store) Parts(ctx context.Context, orderID int64) ([]record.Part, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+partColumns+` FROM parts WHERE order_id = ? ORDER BY is_missing DESC, part_no`, orderID)
	if err != nil {
		return nil, persistErr("list parts", err)
	}
	defer rows.Close()

	var parts []record.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, persistErr("scan part", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list parts", err)
	}
	return parts, nil
}

// Sections lists an order's stored sections by name.
func (s *Store) Sections(ctx context.Context, orderID int64) ([]SectionInfo, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT section, content_type, length(raw_text), last_synced_at
         FROM order_sections WHERE order_id = ? ORDER BY section`, orderID)
	if err != nil {
		return nil, persistErr("list sections", err)
	}
	defer rows.Close()

	var out []SectionInfo
	for rows.Next() {
		var (
			info        SectionInfo
			contentType sql.NullString
			size        sql.NullInt64
			synced      sql.NullString
		)
		if err := rows.Scan(&info.Name, &contentType, &size, &synced); err != nil {
			return nil, persistErr("scan section", err)
		}
		info.ContentType = contentType.String
		info.Size = int(size.Int64)
		if t, err := time.Parse(time.RFC3339, synced.String); err == nil {
			info.SyncedAt = t
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list sections", err)
	}
	return out, nil
}

// Section returns one stored section, or nil when absent.
func (s *Store) Section(ctx context.Context, orderID int64, name string) (*record.Section, error) {
	var (
		sec         record.Section
		contentType sql.NullString
		raw         sql.NullString
		data        sql.NullString
		synced      sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT section, content_type, raw_text, data_json, last_synced_at
         FROM order_sections WHERE order_id = ? AND section = ?`,
		orderID, strings.TrimSpace(name),
	).Scan(&sec.Name, &contentType, &raw, &data, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get section", err)
	}
	sec.ContentType = contentType.String
	sec.Raw = raw.String
	sec.Parsed = []byte(data.String)
	if t, err := time.Parse(time.RFC3339, synced.String); err == nil {
		sec.FetchedAt = t
	}
	return &sec, nil
}

// Employees lists the employee directory by id.
func (s *Store) Employees(ctx context.Context) ([]record.Employee, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name FROM employees ORDER BY id`)
	if err != nil {
		return nil, persistErr("list employees", err)
	}
	defer rows.Close()

	var out []record.Employee
	for rows.Next() {
		var (
			emp  record.Employee
			name sql.NullString
		)
		if err := rows.Scan(&emp.ID, &name); err != nil {
			return nil, persistErr("scan employee", err)
		}
		emp.Name = name.String
		out = append(out, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list employees", err)
	}
	return out, nil
}

// DeleteOrder removes an order with its parts and sections. It reports
// whether a row was deleted.
func (s *Store) DeleteOrder(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, persistErr("delete order", err)
	}
	return affected > 0, nil
}

// Counts returns row counts per table.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, table := range []string{"orders", "parts", "order_sections", "employees"} {
		var n int64
		if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM `+table).Scan(&n); err != nil {
			return nil, persistErr("count "+table, err)
		}
		out[table] = n
	}
	return out, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
