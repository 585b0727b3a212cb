package syncer

import (
	"time"

	"plansync/internal/record"
)

// State is the lifecycle position of one order within a run.
type State string

const (
	StatePending   State = "pending"
	StateFetching  State = "fetching"
	StateParsing   State = "parsing"
	StatePersisted State = "persisted"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}

// Options control one sync run.
type Options struct {
	Jobs int
	// Delay paces submissions; it never affects results.
	Delay         time.Duration
	WithParts     bool
	Full          bool
	IncludeBinary bool
	// OnOutcome is called from the collecting goroutine after each order
	// reaches a terminal state. done counts terminal orders so far.
	OnOutcome func(done, total int, o Outcome)
}

// Outcome is what the pipeline produced for one order.
type Outcome struct {
	Project  record.Project
	State    State
	Record   record.Record
	Err      error
	Warnings []string
	Elapsed  time.Duration
}

// Failure names one order that did not reach the store.
type Failure struct {
	ID        int64
	ShortName string
	Kind      string
	Err       error
}

// Result aggregates a run. Counts do not depend on worker count.
type Result struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	// Skipped counts orders never submitted because the run was stopped.
	Skipped  int
	Warnings int
	Failures []Failure
	Duration time.Duration
}
