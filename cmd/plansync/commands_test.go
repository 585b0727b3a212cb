package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"plansync/internal/record"
	"plansync/internal/services"
	"plansync/internal/syncer"
)

func TestSyncQueryShowDelete(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "sync", "--jobs", "2")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 orders failed") {
		t.Fatalf("expected one failed order, got %v", err)
	}
	requireContains(t, out, "Syncing 3 orders")
	requireContains(t, out, "OK ANDERS | HH-AB 1 | Person 1")
	requireContains(t, out, "FAIL KRAUSE (ID=3)")
	requireContains(t, out, "Done: ok=2 fail=1")

	env.planner.mu.Lock()
	cookies := append([]string(nil), env.planner.cookies...)
	env.planner.mu.Unlock()
	if len(cookies) == 0 || cookies[0] != "abc123" {
		t.Fatalf("expected session cookie on requests, got %v", cookies)
	}

	out, _, err = runCLI(t, env, "query", "--json")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var views []orderView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode query json: %v\n%s", err, out)
	}
	if len(views) != 2 || views[0].ID != 2 || views[1].ID != 1 {
		t.Fatalf("unexpected query result: %+v", views)
	}
	if views[1].Damage != "KL 2-3" || views[1].ShopDate != "2026-01-05" {
		t.Fatalf("order not mapped: %+v", views[1])
	}

	out, _, err = runCLI(t, env, "find", "MEIER")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	requireContains(t, out, "Query results (1 rows)")
	requireContains(t, out, "HH-AB 2")

	out, _, err = runCLI(t, env, "query", "--damage", "KL 2", "--station", "2")
	if err != nil {
		t.Fatalf("query filters: %v", err)
	}
	requireContains(t, out, "Query results (2 rows)")

	out, _, err = runCLI(t, env, "show", "1", "--all-fields")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "ANDERS  ID=1")
	requireContains(t, out, "Person 1")
	requireContains(t, out, "Fahrername")

	_, _, err = runCLI(t, env, "show", "3")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for failed order, got %v", err)
	}

	out, _, err = runCLI(t, env, "delete", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted order 1")

	out, _, err = runCLI(t, env, "find", "ANDERS")
	if err != nil {
		t.Fatalf("find after delete: %v", err)
	}
	requireContains(t, out, "Query results (0 rows)")
}

func TestQueryWritesWorkbook(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "sync"); err == nil {
		t.Fatal("expected sync to report the broken order")
	}

	target := filepath.Join(env.baseDir, "orders.xlsx")
	out, _, err := runCLI(t, env, "query", "--xlsx", target)
	if err != nil {
		t.Fatalf("query --xlsx: %v", err)
	}
	requireContains(t, out, "Wrote 2 rows")

	f, err := excelize.OpenFile(target)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Orders")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %v", rows)
	}
}

func TestShowSectionsAfterFullSync(t *testing.T) {
	env := setupCLITestEnv(t)
	delete(env.planner.broken, "3")

	out, _, err := runCLI(t, env, "sync", "--full", "--jobs", "1")
	if err != nil {
		t.Fatalf("full sync: %v\n%s", err, out)
	}
	requireContains(t, out, "Done: ok=3 fail=0")

	out, _, err = runCLI(t, env, "show", "2", "--sections")
	if err != nil {
		t.Fatalf("show --sections: %v", err)
	}
	requireContains(t, out, "alles da")
	requireContains(t, out, "Sections (3)")
	requireContains(t, out, "visual_forms_plain")

	out, _, err = runCLI(t, env, "show", "2", "--section", "parts")
	if err != nil {
		t.Fatalf("show --section: %v", err)
	}
	requireContains(t, out, "Section parts")

	_, _, err = runCLI(t, env, "show", "2", "--section", "details")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected missing section error, got %v", err)
	}
}

func TestListCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "Orders (3)")
	requireContains(t, out, "KRAUSE")

	out, _, err = runCLI(t, env, "list", "--json")
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list json: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %v", entries)
	}
}

func TestSyncRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.dbPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lock := flock.New(env.dbPath + ".lock")
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer lock.Unlock()

	_, _, err := runCLI(t, env, "sync")
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestSyncRequiresBaseURL(t *testing.T) {
	env := setupCLITestEnv(t)
	content, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "base_url") {
			lines[i] = `base_url = ""`
		}
	}
	if err := os.WriteFile(env.configPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err = runCLI(t, env, "sync")
	if err == nil || !strings.Contains(err.Error(), "remote.base_url is required") {
		t.Fatalf("expected base url error, got %v", err)
	}
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[remote]")
	requireContains(t, out, env.server.URL)

	out, _, err = runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "0 orders")
}

func TestOutcomeLine(t *testing.T) {
	ok := syncer.Outcome{
		Project:  record.Project{ID: 5, ShortName: "HH-1"},
		State:    syncer.StatePersisted,
		Record:   record.Record{Order: record.Order{Plate: "HH-AB 5", Person: "Jo"}},
		Warnings: []string{"x"},
	}
	if got, want := outcomeLine(1, 2, ok, false), "[1/2] OK HH-1 | HH-AB 5 | Jo (1 warnings)"; got != want {
		t.Fatalf("outcomeLine = %q, want %q", got, want)
	}
	failed := syncer.Outcome{
		Project: record.Project{ID: 6, ShortName: "HH-2"},
		State:   syncer.StateFailed,
		Err:     errors.New("HTTP 500"),
	}
	if got, want := outcomeLine(2, 2, failed, false), "[2/2] FAIL HH-2 (ID=6): HTTP 500"; got != want {
		t.Fatalf("outcomeLine = %q, want %q", got, want)
	}
	if got := outcomeLine(2, 2, failed, true); !strings.Contains(got, ansiRed) {
		t.Fatalf("expected color codes, got %q", got)
	}
}

func TestLogsCommandFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.baseDir, "logs", "plansync.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := `{"level":"info","msg":"order persisted","order_id":1}
{"level":"error","msg":"order failed","order_id":3}
{"level":"warn","msg":"section failed","order_id":1}
`
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "--order", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "order failed") || !strings.Contains(out, "section failed") {
		t.Fatalf("unexpected filtered output: %s", out)
	}

	out, _, err = runCLI(t, env, "logs", "--level", "error", "-n", "2")
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	if strings.TrimSpace(out) != `{"level":"error","msg":"order failed","order_id":3}` {
		t.Fatalf("unexpected level output: %q", out)
	}
}
