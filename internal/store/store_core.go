package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"

	"plansync/internal/config"
	"plansync/internal/services"
)

// Store persists synchronized records in one SQLite database. It holds a
// single connection, so the sync collector is its only writer at any time.
type Store struct {
	db   *sql.DB
	path string
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// connPragmas are applied by the driver on every new connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

const (
	sqliteBusy    = 5
	busyAttempts  = 5
	busyBackoff   = 10 * time.Millisecond
	busyBackoffMx = 200 * time.Millisecond
)

// Open creates the database directory when needed and opens the configured
// database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.Paths.DBPath)
}

// OpenPath opens or creates the database at path and applies the schema.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, persistErr("open", fmt.Errorf("open sqlite db: %w", err))
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, persistErr("open", fmt.Errorf("open %s: %w", path, err))
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, persistErr("schema", err)
	}
	return s, nil
}

func dsn(path string) string {
	params := make([]string, 0, len(connPragmas))
	for _, p := range connPragmas {
		params = append(params, "_pragma="+p)
	}
	return path + "?" + strings.Join(params, "&")
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// persistErr tags err as a persistence failure, which aborts a sync run.
func persistErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	return services.Wrap(services.ErrPersistence, "store", operation, "", err)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqliteBusy
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// retryOnBusy reruns op while another process (a concurrent `plansync
// delete`, say) holds the write lock beyond busy_timeout.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil || !isBusy(err) || attempt == busyAttempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, busyBackoffMx)
	}
}
