package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"plansync/internal/fragment"
	"plansync/internal/logging"
	"plansync/internal/record"
	"plansync/internal/remote"
	"plansync/internal/services"
)

// SessionFactory creates one session per worker.
type SessionFactory func() (remote.Session, error)

// Applier persists one record atomically.
type Applier interface {
	ApplyRecord(ctx context.Context, rec record.Record) error
}

// Syncer coordinates sync runs.
type Syncer struct {
	store       Applier
	parser      fragment.Parser
	newSession  SessionFactory
	formTableID int
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs a Syncer. formTableID selects the order form table.
func New(store Applier, parser fragment.Parser, newSession SessionFactory, formTableID int, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		store:       store,
		parser:      parser,
		newSession:  newSession,
		formTableID: formTableID,
		logger:      logging.NewComponentLogger(logger, "syncer"),
		now:         time.Now,
	}
}

// Projects enumerates the remote projects over a fresh session.
func (s *Syncer) Projects(ctx context.Context) ([]record.Project, error) {
	session, err := s.newSession()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(session, s.formTableID).ProjectStations(ctx)
}

// Run syncs projects and returns the aggregate result. The returned error is
// non-nil only when the store failed; per-order failures are in the result.
func (s *Syncer) Run(ctx context.Context, projects []record.Project, opts Options) (Result, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := s.logger.With(logging.String(logging.FieldRunID, runID))

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(projects) && len(projects) > 0 {
		jobs = len(projects)
	}
	res := Result{RunID: runID, Total: len(projects)}
	started := time.Now()
	logger.Info("sync started",
		logging.String(logging.FieldEventType, "sync_start"),
		logging.Int("orders", len(projects)),
		logging.Int("jobs", jobs),
		logging.Bool("with_parts", opts.WithParts),
		logging.Bool("full", opts.Full),
	)

	// Submission stops when either the caller or a store failure cancels it.
	// Work already handed to a worker runs on a context that ignores both.
	submitCtx, stopSubmitting := context.WithCancel(ctx)
	defer stopSubmitting()
	workCtx := context.WithoutCancel(ctx)

	queue := make(chan record.Project)
	outcomes := make(chan Outcome, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(workCtx, queue, outcomes, opts)
		}()
	}

	submitted := 0
	go func() {
		defer close(queue)
		var limiter *rate.Limiter
		if opts.Delay > 0 {
			limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
		}
		for _, p := range projects {
			if limiter != nil {
				if err := limiter.Wait(submitCtx); err != nil {
					return
				}
			}
			select {
			case queue <- p:
				submitted++
			case <-submitCtx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var (
		storeErr error
		done     int
	)
	sampler := logging.NewProgressSampler(10)
	for out := range outcomes {
		if storeErr != nil {
			continue
		}
		if out.State != StateFailed {
			if err := s.store.ApplyRecord(workCtx, out.Record); err != nil {
				storeErr = err
				stopSubmitting()
				out.State = StateFailed
				out.Err = err
			} else {
				out.State = StatePersisted
			}
		}
		done++
		s.record(logger, &res, out)
		if opts.OnOutcome != nil {
			opts.OnOutcome(done, len(projects), out)
		}
		if sampler.ShouldLog(done, len(projects)) {
			logger.Info("sync progress",
				logging.String(logging.FieldEventType, "sync_progress"),
				logging.Int("done", done),
				logging.Int("total", len(projects)),
				logging.Int("failed", res.Failed),
			)
		}
	}

	// The submitter has exited once outcomes is closed.
	res.Skipped = len(projects) - submitted
	res.Duration = time.Since(started)
	if storeErr != nil {
		logging.ErrorWithContext(logger, "sync aborted: store write failed", "sync_aborted",
			logging.Error(storeErr),
			logging.String(logging.FieldErrorHint, "check disk space and database integrity"),
		)
		return res, fmt.Errorf("sync run %s: %w", runID, storeErr)
	}

	level := slog.LevelInfo
	if res.Failed > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "sync finished",
		logging.String(logging.FieldEventType, "sync_complete"),
		logging.Int("succeeded", res.Succeeded),
		logging.Int("failed", res.Failed),
		logging.Int("skipped", res.Skipped),
		logging.Int("warnings", res.Warnings),
		logging.Duration("duration", res.Duration),
	)
	if errors.Is(ctx.Err(), context.Canceled) && res.Skipped > 0 {
		logger.Info("sync stopped before all orders were submitted", logging.Int("skipped", res.Skipped))
	}
	return res, nil
}

// worker owns one session for its lifetime. The session is created on the
// first order; a failed creation fails that order and is retried on the next.
func (s *Syncer) worker(ctx context.Context, queue <-chan record.Project, outcomes chan<- Outcome, opts Options) {
	var client *remote.Client
	for project := range queue {
		if client == nil {
			session, err := s.newSession()
			if err != nil {
				outcomes <- Outcome{Project: project, State: StateFailed, Err: err}
				continue
			}
			client = remote.NewClient(session, s.formTableID)
		}
		outcomes <- s.process(ctx, client, project, opts)
	}
}

func (s *Syncer) record(logger *slog.Logger, res *Result, out Outcome) {
	orderLogger := logger.With(logging.Order(out.Project.ID, out.Project.ShortName)...)
	res.Warnings += len(out.Warnings)
	for _, w := range out.Warnings {
		logging.WarnWithContext(orderLogger, "order synced with warnings", "order_warning",
			logging.String("warning", w),
			logging.String(logging.FieldImpact, "some fields or sections of this order may be empty"),
			logging.String(logging.FieldErrorHint, "rerun with --log-level debug to inspect the response"),
		)
	}
	if out.State == StatePersisted {
		res.Succeeded++
		orderLogger.Debug("order persisted",
			logging.String(logging.FieldEventType, "order_persisted"),
			logging.Duration("elapsed", out.Elapsed),
		)
		return
	}
	res.Failed++
	kind := services.Kind(out.Err)
	res.Failures = append(res.Failures, Failure{
		ID:        out.Project.ID,
		ShortName: out.Project.ShortName,
		Kind:      kind,
		Err:       out.Err,
	})
	logging.ErrorWithContext(orderLogger, "order failed", "order_failed",
		logging.ErrorKind(out.Err),
		logging.Error(out.Err),
	)
}
