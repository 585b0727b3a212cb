package query

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"plansync/internal/config"
	"plansync/internal/record"
	"plansync/internal/services"
	"plansync/internal/store"
	"plansync/internal/testsupport"
)

func seed(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	station := int64(4)
	orders := []record.Order{
		testsupport.NewOrder(1, "ANDERS", "BB-SK 2307"),
		testsupport.NewOrder(2, "MEIER", "S-AB 100"),
		testsupport.NewOrder(3, "KRAUSE", "M-XY 42"),
	}
	orders[0].Person = "Jana Anders"
	orders[0].ShopDate = "2026-01-10"
	orders[0].FinishDate = "2026-01-20"
	orders[0].StationID = &station
	orders[0].StationState = "finished"
	orders[0].MissingParts = true
	orders[1].Person = "Olaf Meier"
	orders[1].ShopDate = "2026-02-01"
	orders[1].Damage = "Heckschaden"
	orders[2].Person = "Eva Krause"
	orders[2].ShopDate = "2026-01-10"
	orders[2].ProjectStatus = "offen"
	for _, o := range orders {
		testsupport.MustApply(t, st, record.Record{Order: o})
	}
	return mustEngine(t, st, cfg.Query), st
}

func mustEngine(t *testing.T, st Store, limits config.Query) *Engine {
	t.Helper()

	engine, err := NewEngine(st, limits, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func ids(orders []record.Order) []int64 {
	out := make([]int64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.ID)
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTokensAndExpression(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BB-SK 2307", `"BB-SK" AND "2307"`},
		{"-anders", `"anders"`},
		{`meier" OR *`, `"meier" AND "OR"`},
		{"  ", ""},
		{"***", ""},
	}
	for _, tt := range tests {
		if got := MatchExpression(Tokens(tt.in)); got != tt.want {
			t.Fatalf("MatchExpression(Tokens(%q)) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchOrdersByShopDateThenID(t *testing.T) {
	engine, _ := seed(t)

	got, err := engine.Search(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []int64{2, 3, 1}; !equalIDs(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
}

func TestSearchFreeText(t *testing.T) {
	engine, _ := seed(t)

	tests := []struct {
		name string
		text string
		want []int64
	}{
		{"plate with hyphen", "BB-SK 2307", []int64{1}},
		{"leading dash", "-anders", []int64{1}},
		{"person token", "meier", []int64{2}},
		{"partial plate falls back to substring", "SK 23", []int64{1}},
		{"hyphenated plate", "M-XY 42", []int64{3}},
		{"no tokens uses substring scan", "***", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Search(context.Background(), Filter{Text: tt.text})
			if err != nil {
				t.Fatalf("Search(%q): %v", tt.text, err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Fatalf("Search(%q) ids = %v, want %v", tt.text, ids(got), tt.want)
			}
		})
	}
}

func TestSearchStructuredFilters(t *testing.T) {
	engine, _ := seed(t)
	station := int64(4)

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"plate", Filter{Plate: "s-ab"}, []int64{2}},
		{"status", Filter{Status: "offen"}, []int64{3}},
		{"damage", Filter{Damage: "heck"}, []int64{2}},
		{"station", Filter{Station: &station}, []int64{1}},
		{"missing parts", Filter{MissingParts: true}, []int64{1}},
		{"shop date range", Filter{After: "2026-01-01", Before: "2026-01-31"}, []int64{3, 1}},
		{"local date form", Filter{After: "01.02.2026"}, []int64{2}},
		{"finish date", Filter{FinishAfter: "2026-01-15"}, []int64{1}},
		{"text and filter intersect", Filter{Text: "anders", Plate: "S-AB"}, nil},
		{"limit", Filter{Limit: 1}, []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Search(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Fatalf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestSearchRejectsInvalidFilter(t *testing.T) {
	engine, _ := seed(t)

	_, err := engine.Search(context.Background(), Filter{After: "last tuesday"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = engine.Search(context.Background(), Filter{Limit: -1})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative limit, got %v", err)
	}
}

type recordingStore struct {
	matchErr error
	hits     []int64
	query    string
	args     []any
}

func (s *recordingStore) QueryOrders(_ context.Context, query string, args ...any) ([]record.Order, error) {
	s.query = query
	s.args = args
	return nil, nil
}

func (s *recordingStore) MatchFullText(context.Context, string, int) ([]int64, error) {
	return s.hits, s.matchErr
}

func TestSearchMatchesIndexInsideQuery(t *testing.T) {
	st := &recordingStore{hits: []int64{7}}
	engine := mustEngine(t, st, config.Query{DefaultLimit: 50, MaxLimit: 100})

	if _, err := engine.Search(context.Background(), Filter{Text: "BB-SK 2307"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(st.query, "orders_fts MATCH ?") {
		t.Fatalf("expected index subselect, got %q", st.query)
	}
	if strings.Contains(st.query, "LIKE") {
		t.Fatalf("unexpected substring scan: %q", st.query)
	}
	if len(st.args) == 0 || st.args[0] != `"BB-SK" AND "2307"` {
		t.Fatalf("expected bound match expression, got args %v", st.args)
	}
}

func TestSearchFreeTextOverManyMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	const total = 250
	for id := int64(1); id <= total; id++ {
		o := testsupport.NewOrder(id, fmt.Sprintf("KUNDE%03d", id), fmt.Sprintf("HH-AB %d", id))
		o.ProjectStatus = "fertig"
		o.ShopDate = fmt.Sprintf("2025-%02d-%02d", 1+id%12, 1+id%28)
		if id == total {
			o.Plate = "ZZ-TOP 1"
			o.ShopDate = "2026-06-01"
		}
		testsupport.MustApply(t, st, record.Record{Order: o})
	}
	engine := mustEngine(t, st, cfg.Query)

	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"newest match first", Filter{Text: "fertig", Limit: 1}, []int64{total}},
		{"filter intersects whole match set", Filter{Text: "fertig", Plate: "ZZ-TOP"}, []int64{total}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Search(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Fatalf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}

	got, err := engine.Search(context.Background(), Filter{Text: "fertig", Limit: total})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != total {
		t.Fatalf("expected %d matches, got %d", total, len(got))
	}
}

func TestSearchFallsBackWhenIndexFails(t *testing.T) {
	st := &recordingStore{matchErr: errors.New("fts5: syntax error")}
	engine := mustEngine(t, st, config.Query{DefaultLimit: 50, MaxLimit: 100})

	if _, err := engine.Search(context.Background(), Filter{Text: "anders"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.Contains(st.query, "short_name LIKE ?") || !strings.Contains(st.query, "email LIKE ?") {
		t.Fatalf("expected substring fallback, got %q", st.query)
	}
	if strings.Contains(st.query, "anders") {
		t.Fatalf("text must be bound, not inlined: %q", st.query)
	}
	patterns := 0
	for _, arg := range st.args {
		if arg == "%anders%" {
			patterns++
		}
	}
	if patterns != len(likeColumns) {
		t.Fatalf("expected %d bound patterns, got args %v", len(likeColumns), st.args)
	}
}

func TestLimitIsCapped(t *testing.T) {
	engine := mustEngine(t, &recordingStore{}, config.Query{DefaultLimit: 50, MaxLimit: 100})

	tests := map[int]int{0: 50, 10: 10, 500: 100}
	for requested, want := range tests {
		if got := engine.limit(requested); got != want {
			t.Fatalf("limit(%d) = %d, want %d", requested, got, want)
		}
	}
}

func TestExportXLSX(t *testing.T) {
	engine, _ := seed(t)
	orders, err := engine.Search(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportXLSX(&buf, orders); err != nil {
		t.Fatalf("ExportXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][0] != "2" || rows[3][2] != "BB-SK 2307" {
		t.Fatalf("unexpected workbook content: %v", rows)
	}
	if rows[3][11] != "4" || rows[3][14] != "1" {
		t.Fatalf("unexpected station/missing cells: %v", rows[3])
	}
}
