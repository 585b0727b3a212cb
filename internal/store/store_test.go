package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"plansync/internal/record"
	"plansync/internal/services"
	"plansync/internal/store"
	"plansync/internal/testsupport"
)

func floatPtr(v float64) *float64 { return &v }

func sampleRecord(id int64) record.Record {
	order := testsupport.NewOrder(id, "HH-AB 1", "HH-AB 1234")
	order.Person = "Erika Mustermann"
	order.ProjectStatus = "in Arbeit"
	order.ShopDate = "2025-12-01"
	order.EstKaro = floatPtr(12.5)
	order.Fields = map[string]string{"Fahrername": "Erika Mustermann"}
	order.VehicleInfo = map[string]string{"vin": "WVW1"}
	return record.Record{
		Order: order,
		Parts: []record.Part{
			{PartNo: "A-1", Description: "Tür", Qty: floatPtr(1), IsOrdered: true, IsMissing: true, Raw: map[string]any{"src": "tab"}},
			{PartNo: "A-2", Description: "Spiegel", IsDelivered: true},
		},
		PartsFetched: true,
		Sections: []record.Section{
			{Name: "details", ContentType: "application/json", Raw: `{"html":"<p>x</p>"}`, Parsed: []byte(`{"parsed":{}}`)},
		},
		SectionsFetched: true,
		Employees:       []record.Employee{{ID: 3, Name: "Max"}},
	}
}

func TestApplyRecordRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustApply(t, st, sampleRecord(42))

	order, err := st.GetOrder(ctx, 42)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order == nil {
		t.Fatal("expected stored order")
	}
	if order.Person != "Erika Mustermann" || order.ShopDate != "2025-12-01" || order.EstKaro == nil || *order.EstKaro != 12.5 {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.StationID != nil || order.EstLack != nil {
		t.Fatal("absent optional columns must stay nil")
	}
	if order.Fields["Fahrername"] != "Erika Mustermann" || order.VehicleInfo["vin"] != "WVW1" {
		t.Fatalf("unexpected json columns %v %v", order.Fields, order.VehicleInfo)
	}
	if !order.SyncedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sync time %v", order.SyncedAt)
	}

	parts, err := st.Parts(ctx, 42)
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}
	if len(parts) != 2 || parts[0].PartNo != "A-1" || !parts[0].IsMissing || !parts[0].IsOrdered {
		t.Fatalf("expected missing part first, got %+v", parts)
	}
	if parts[0].Raw["src"] != "tab" {
		t.Fatalf("raw row not kept: %v", parts[0].Raw)
	}

	sec, err := st.Section(ctx, 42, "details")
	if err != nil || sec == nil {
		t.Fatalf("Section: %v %v", sec, err)
	}
	if string(sec.Parsed) != `{"parsed":{}}` {
		t.Fatalf("unexpected section data %s", sec.Parsed)
	}
	missing, err := st.Section(ctx, 42, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown section, got %v %v", missing, err)
	}

	none, err := st.GetOrder(ctx, 999)
	if err != nil || none != nil {
		t.Fatalf("expected nil for unknown order, got %v %v", none, err)
	}
}

func TestApplyRecordIsIdempotentAndReplacesChildren(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := sampleRecord(7)
	testsupport.MustApply(t, st, first)

	second := sampleRecord(7)
	second.Parts = []record.Part{{PartNo: "B-1", Description: "Haube"}}
	second.Sections = []record.Section{{Name: "invoice", Raw: "<p>i</p>"}}
	testsupport.MustApply(t, st, second)
	testsupport.MustApply(t, st, second)

	counts, err := st.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := map[string]int64{"orders": 1, "parts": 1, "order_sections": 1, "employees": 1}
	for table, n := range want {
		if counts[table] != n {
			t.Fatalf("%s count = %d, want %d", table, counts[table], n)
		}
	}
	parts, _ := st.Parts(ctx, 7)
	if parts[0].PartNo != "B-1" {
		t.Fatalf("expected replaced parts, got %+v", parts)
	}
	sections, _ := st.Sections(ctx, 7)
	if len(sections) != 1 || sections[0].Name != "invoice" || sections[0].Size != len("<p>i</p>") {
		t.Fatalf("unexpected sections %+v", sections)
	}
}

func TestApplyRecordKeepsChildrenWhenNotFetched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustApply(t, st, sampleRecord(8))
	light := record.Record{Order: testsupport.NewOrder(8, "HH-AB 1", "HH-AB 1234")}
	testsupport.MustApply(t, st, light)

	parts, _ := st.Parts(ctx, 8)
	sections, _ := st.Sections(ctx, 8)
	if len(parts) != 2 || len(sections) != 1 {
		t.Fatalf("light sync must not wipe detail, got %d parts %d sections", len(parts), len(sections))
	}
}

func TestApplyRecordDeduplicatesParts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	rec := sampleRecord(9)
	rec.Parts = []record.Part{
		{PartNo: "X", Description: "Lampe", Status: "first"},
		{PartNo: "X", Description: "Lampe", Status: "second"},
	}
	testsupport.MustApply(t, st, rec)

	parts, _ := st.Parts(context.Background(), 9)
	if len(parts) != 1 || parts[0].Status != "first" {
		t.Fatalf("expected first duplicate kept, got %+v", parts)
	}
}

func TestFullTextIndexFollowsOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustApply(t, st, sampleRecord(11))
	ids, err := st.MatchFullText(ctx, `"Mustermann"`, 10)
	if err != nil {
		t.Fatalf("MatchFullText: %v", err)
	}
	if len(ids) != 1 || ids[0] != 11 {
		t.Fatalf("expected match on insert, got %v", ids)
	}

	updated := sampleRecord(11)
	updated.Order.Person = "Hans Beispiel"
	testsupport.MustApply(t, st, updated)
	if ids, _ := st.MatchFullText(ctx, `"Mustermann"`, 10); len(ids) != 0 {
		t.Fatalf("stale token still indexed: %v", ids)
	}
	if ids, _ := st.MatchFullText(ctx, `"Beispiel"`, 10); len(ids) != 1 {
		t.Fatalf("updated token not indexed: %v", ids)
	}

	deleted, err := st.DeleteOrder(ctx, 11)
	if err != nil || !deleted {
		t.Fatalf("DeleteOrder: %v %v", deleted, err)
	}
	if ids, _ := st.MatchFullText(ctx, `"Beispiel"`, 10); len(ids) != 0 {
		t.Fatalf("deleted order still indexed: %v", ids)
	}
	counts, _ := st.Counts(ctx)
	if counts["parts"] != 0 || counts["order_sections"] != 0 {
		t.Fatalf("children must cascade, got %v", counts)
	}
	if deleted, _ := st.DeleteOrder(ctx, 11); deleted {
		t.Fatal("second delete must report nothing deleted")
	}
}

func TestEmployeesUpsertByID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	rec := sampleRecord(1)
	testsupport.MustApply(t, st, rec)
	rec.Employees = []record.Employee{{ID: 3, Name: "Max M."}, {ID: 4, Name: "Eva"}}
	testsupport.MustApply(t, st, rec)

	emps, err := st.Employees(context.Background())
	if err != nil {
		t.Fatalf("Employees: %v", err)
	}
	if len(emps) != 2 || emps[0].Name != "Max M." || emps[1].ID != 4 {
		t.Fatalf("unexpected employees %+v", emps)
	}
}

func TestApplyRecordRejectsMissingID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.ApplyRecord(context.Background(), record.Record{})
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestOpenAddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stmts := []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, short_name TEXT, plate TEXT, person TEXT, phone TEXT, email TEXT,
            damage TEXT, project_status TEXT, station_id INTEGER, station_state TEXT, shop_date TEXT, repair_date TEXT,
            finish_date TEXT, planned_delivery_date TEXT, parts_status TEXT, missing_parts INTEGER NOT NULL DEFAULT 0,
            est_hours_karo REAL, est_hours_lack REAL, est_hours_mech REAL, fields_json TEXT, vehicle_json TEXT, last_synced_at TEXT)`,
		`CREATE TABLE parts (order_id INTEGER NOT NULL, part_no TEXT NOT NULL DEFAULT '', description TEXT NOT NULL DEFAULT '',
            qty REAL, status TEXT, delivery_date TEXT, eta_date TEXT, is_missing INTEGER NOT NULL DEFAULT 0, raw_json TEXT,
            PRIMARY KEY (order_id, part_no, description))`,
		`INSERT INTO orders (id, short_name) VALUES (5, 'old')`,
		`INSERT INTO parts (order_id, part_no, description, status) VALUES (5, 'P', 'legacy', 'offen')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	_ = db.Close()

	st, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer st.Close()

	parts, err := st.Parts(context.Background(), 5)
	if err != nil {
		t.Fatalf("Parts after migration: %v", err)
	}
	if len(parts) != 1 || parts[0].Description != "legacy" || parts[0].Status != "offen" || parts[0].IsToOrder {
		t.Fatalf("legacy data not preserved: %+v", parts)
	}

	// A reopen must be a no-op.
	_ = st.Close()
	st2, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
}
