package testsupport

import (
	"path/filepath"
	"testing"

	"plansync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp paths per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DBPath = filepath.Join(base, "data", "planso.sqlite")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Remote.BaseURL = "http://127.0.0.1:1"
	cfgVal.Remote.CookieJar = filepath.Join(base, "cookies.txt")
	cfgVal.Remote.EnvFile = ""
	cfgVal.Remote.TimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the remote at url, usually an httptest server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.BaseURL = url
	}
}

// WithJobs sets the sync worker count.
func WithJobs(jobs int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.Jobs = jobs
	}
}

// WithStrategy selects the fragment parser strategy.
func WithStrategy(strategy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Parser.Strategy = strategy
	}
}

// WithCookie writes a cookie jar holding one host cookie for the configured
// session.
func WithCookie(host, name, value string) ConfigOption {
	return func(b *configBuilder) {
		WriteCookieJar(b.t, b.cfg.Remote.CookieJar, host, name, value)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
