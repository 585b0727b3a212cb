package testsupport

import (
	"context"
	"testing"
	"time"

	"plansync/internal/config"
	"plansync/internal/record"
	"plansync/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewOrder returns a minimal order with the given identity.
func NewOrder(id int64, shortName, plate string) record.Order {
	return record.Order{
		ID:          id,
		ShortName:   shortName,
		Plate:       plate,
		Fields:      map[string]string{},
		VehicleInfo: map[string]string{},
		SyncedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MustApply writes rec and fails the test on error.
func MustApply(t testing.TB, st *store.Store, rec record.Record) {
	t.Helper()

	if err := st.ApplyRecord(context.Background(), rec); err != nil {
		t.Fatalf("ApplyRecord(%d): %v", rec.Order.ID, err)
	}
}
