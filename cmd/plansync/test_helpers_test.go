package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"plansync/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	dbPath     string
	planner    *fakePlanner
	server     *httptest.Server
}

// fakePlanner serves the /do endpoints for a fixed set of orders. Orders in
// broken answer the shop view with HTTP 500.
type fakePlanner struct {
	mu      sync.Mutex
	orders  map[string]string
	broken  map[string]bool
	cookies []string
}

func (p *fakePlanner) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	if c, err := r.Cookie("PHPSESSID"); err == nil {
		p.cookies = append(p.cookies, c.Value)
	}
	p.mu.Unlock()

	id := r.Form.Get("ID")
	if id == "" {
		id = r.Form.Get("dataID")
	}
	writeJSONBody := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	switch r.Form.Get("m") {
	case "resourceplanner_get_project_stations":
		payload := map[string]any{"execution_time": 0.1}
		for key, short := range p.orders {
			payload[key] = map[string]any{"ID": key, "short_name": short, "station": "2@active", "employeeID": "7"}
		}
		writeJSONBody(payload)
	case "resourceplanner_shop_view_single":
		if p.broken[id] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeJSONBody(map[string]any{"center": map[string]any{"content": ""}})
	case "visual_forms_plain":
		html := fmt.Sprintf(`<div><label>Fahrername</label><input value="Person %s"></div>`+
			`<div><label>Kennzeichen</label><input value="HH-AB %s"></div>`+
			`<div><label>Werkstattstart</label><input value="05.01.2026"></div>`+
			`<div><label>Kategorie</label><input value="KL 2-3"></div>`, id, id)
		writeJSONBody(map[string]any{"center": map[string]any{"content": html}})
	case "resourceplanner_shop_view_get_parts":
		writeJSONBody(map[string]any{"html": `<button class="rsvgp_status_dropdown">alles da</button>`})
	default:
		http.NotFound(w, r)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("PLANSO_BASE_URL", "")
	t.Setenv("PLANSO_COOKIE_JAR", "")

	planner := &fakePlanner{
		orders: map[string]string{"1": "ANDERS", "2": "MEIER", "3": "KRAUSE"},
		broken: map[string]bool{"3": true},
	}
	server := httptest.NewServer(planner)
	t.Cleanup(server.Close)

	host := strings.TrimPrefix(server.URL, "http://")
	host = strings.Split(host, ":")[0]
	cookieJar := filepath.Join(base, "cookies.txt")
	testsupport.WriteCookieJar(t, cookieJar, host, "PHPSESSID", "abc123")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		dbPath:     filepath.Join(base, "data", "planso.sqlite"),
		planner:    planner,
		server:     server,
	}
	content := fmt.Sprintf(`[paths]
db_path = %q
log_dir = %q

[remote]
base_url = %q
cookie_jar = %q
env_file = ""
timeout_seconds = 5

[parser]
strategy = "regex"

[logging]
level = "error"
`, env.dbPath, filepath.Join(base, "logs"), server.URL, cookieJar)
	testsupport.WriteFile(t, env.configPath, content)
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
