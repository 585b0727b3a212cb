package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"plansync/internal/logging"
	"plansync/internal/store"
	"plansync/internal/syncer"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		jobs          int
		delay         time.Duration
		withParts     bool
		full          bool
		includeBinary bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync remote orders into the local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			opts := syncer.Options{
				Jobs:          cfg.Sync.Jobs,
				Delay:         cfg.SyncDelay(),
				WithParts:     cfg.Sync.WithParts,
				Full:          cfg.Sync.Full,
				IncludeBinary: cfg.Sync.IncludeBinary,
			}
			if flags.Changed("jobs") {
				opts.Jobs = jobs
			}
			if flags.Changed("delay") {
				opts.Delay = delay
			}
			if flags.Changed("with-parts") {
				opts.WithParts = withParts
			}
			if flags.Changed("full") {
				opts.Full = full
			}
			if flags.Changed("include-binary") {
				opts.IncludeBinary = includeBinary
			}
			if opts.Jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1")
			}
			return runSync(cmd, ctx, opts)
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "Parallel workers, one remote session each")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between order submissions (e.g. 250ms)")
	cmd.Flags().BoolVar(&withParts, "with-parts", false, "Also fetch and store the parts list")
	cmd.Flags().BoolVar(&full, "full", false, "Also store a snapshot of every order tab (implies --with-parts)")
	cmd.Flags().BoolVar(&includeBinary, "include-binary", false, "Include image and document listings in --full snapshots")
	return cmd
}

func runSync(cmd *cobra.Command, ctx *commandContext, opts syncer.Options) error {
	cfg := ctx.configValue()
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another sync is already running against %s", cfg.Paths.DBPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release sync lock", logging.Error(err))
		}
	}()

	parser, err := ctx.parser()
	if err != nil {
		return err
	}
	factory, err := ctx.sessionFactory(logger)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := syncer.New(st, parser, factory, cfg.Remote.FormTableID, logger)
	projects, err := s.Projects(runCtx)
	if err != nil {
		return fmt.Errorf("list remote orders: %w", err)
	}

	out := cmd.OutOrStdout()
	color := isTerminal(out)
	fmt.Fprintf(out, "Syncing %d orders into %s (parser: %s, jobs: %d)\n", len(projects), cfg.Paths.DBPath, parser.Name(), opts.Jobs)
	opts.OnOutcome = func(done, total int, o syncer.Outcome) {
		fmt.Fprintln(out, outcomeLine(done, total, o, color))
	}

	res, err := s.Run(runCtx, projects, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Done: ok=%d fail=%d", res.Succeeded, res.Failed)
	if res.Skipped > 0 {
		fmt.Fprintf(out, " skipped=%d", res.Skipped)
	}
	if res.Warnings > 0 {
		fmt.Fprintf(out, " warnings=%d", res.Warnings)
	}
	fmt.Fprintf(out, " (%s)\n", res.Duration.Round(time.Millisecond))
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d orders failed to sync", res.Failed, res.Total)
	}
	return nil
}

func outcomeLine(done, total int, o syncer.Outcome, color bool) string {
	prefix := fmt.Sprintf("[%d/%d]", done, total)
	if o.State == syncer.StatePersisted {
		status := "OK"
		if color {
			status = ansiGreen + status + ansiReset
		}
		line := fmt.Sprintf("%s %s %s | %s | %s", prefix, status, o.Project.ShortName, o.Record.Order.Plate, o.Record.Order.Person)
		if n := len(o.Warnings); n > 0 {
			line += fmt.Sprintf(" (%d warnings)", n)
		}
		return line
	}
	status := "FAIL"
	if color {
		status = ansiRed + status + ansiReset
	}
	return fmt.Sprintf("%s %s %s (ID=%d): %v", prefix, status, o.Project.ShortName, o.Project.ID, o.Err)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
