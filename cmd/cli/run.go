package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/geoscraper/tile-service/internal/app"
	"github.com/geoscraper/tile-service/internal/jobs"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

var markFromLedger bool

var acquireCmd = &cobra.Command{
	Use:   "acquire <task-id>",
	Short: "Run the acquisition of a queued task and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE: runAndWait(func(ctx context.Context, m *jobs.Manager, id int64) (*jobs.Run, error) {
		return m.StartAcquisition(ctx, id)
	}),
}

var verifyCmd = &cobra.Command{
	Use:   "verify <task-id>",
	Short: "Verify a completed task against the tile cache and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE: runAndWait(func(ctx context.Context, m *jobs.Manager, id int64) (*jobs.Run, error) {
		return m.StartVerification(ctx, id)
	}),
}

var redownloadCmd = &cobra.Command{
	Use:   "redownload <task-id>",
	Short: "Refetch a task's missing tiles and wait for it",
	Args:  cobra.ExactArgs(1),
	RunE: runAndWait(func(ctx context.Context, m *jobs.Manager, id int64) (*jobs.Run, error) {
		return m.StartRedownload(ctx, id)
	}),
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Reset a failed task to queued",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var markCmd = &cobra.Command{
	Use:   "mark-non-existent <task-id> [z/x/y]...",
	Short: "Mark tiles as non-existent so verification skips them",
	Example: `  tile-service mark-non-existent 12 14/9012/5860 14/9013/5860
  tile-service mark-non-existent 12 --from-ledger`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMark,
}

func init() {
	rootCmd.AddCommand(acquireCmd, verifyCmd, redownloadCmd, retryCmd, markCmd)

	markCmd.Flags().BoolVar(&markFromLedger, "from-ledger", false, "Mark every tile currently ledgered as missing")
}

type starter func(ctx context.Context, m *jobs.Manager, id int64) (*jobs.Run, error)

// progressPrinter logs each task snapshot that changes the visible progress
type progressPrinter struct {
	mu   sync.Mutex
	last map[int64]string
}

func (p *progressPrinter) Publish(_ context.Context, t *types.Task) error {
	line := fmt.Sprintf("%s %d%% %d/%d | verification %s %d%% missing %d",
		t.Status, t.Progress, t.CompletedTiles, t.TotalTiles,
		t.VerificationStatus, t.VerificationProgress, t.MissingTiles)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last[t.ID] == line {
		return nil
	}
	p.last[t.ID] = line
	logger.Info().Int64("task_id", t.ID).Msg(line)
	return nil
}

func runAndWait(start starter) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}

		ctx, stop := commandContext()
		defer stop()

		a, err := openApp(ctx, &progressPrinter{last: make(map[int64]string)})
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := start(ctx, a.Jobs, id)
		if err != nil {
			return explain(err)
		}
		logger.Info().Int64("task_id", id).Str("kind", string(run.Kind)).Str("run_id", run.ID.String()).Msg("Run started")

		waitErr := run.Wait(ctx)
		if errors.Is(waitErr, context.Canceled) {
			logger.Warn().Msg("Interrupted, stopping the run")
			return drain(a)
		}
		if waitErr != nil {
			return fmt.Errorf("run failed: %w", waitErr)
		}

		t, err := a.Machine.Get(context.Background(), id)
		if err != nil {
			return err
		}
		printTask(cmd.OutOrStdout(), t)
		return nil
	}
}

// drain gives an interrupted run a bounded window to record its outcome
func drain(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Jobs.Shutdown(ctx); err != nil {
		return fmt.Errorf("run did not stop cleanly: %w", err)
	}
	return context.Canceled
}

func runRetry(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.Jobs.Retry(ctx, id)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %d has been reset to %s.\n", t.ID, t.Status)
	return nil
}

func runMark(cmd *cobra.Command, args []string) error {
	id, err := parseTaskID(args[0])
	if err != nil {
		return err
	}

	var coords []types.TileCoord
	for _, s := range args[1:] {
		c, err := types.ParseTileCoord(s)
		if err != nil {
			return err
		}
		coords = append(coords, c)
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if markFromLedger {
		missing, err := a.Ledger.ListTiles(ctx, id, types.TileMissing)
		if err != nil {
			return err
		}
		coords = append(coords, missing...)
	}
	coords = tiles.Unique(coords)
	if len(coords) == 0 {
		return fmt.Errorf("no tiles given; pass z/x/y coordinates or --from-ledger")
	}

	t, err := a.Jobs.MarkNonExistent(ctx, id, coords)
	if err != nil {
		return explain(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d tiles marked as non-existent; %d still missing.\n", len(coords), t.MissingTiles)
	return nil
}

// explain turns a conflict into the operations the task does allow
func explain(err error) error {
	var conflict *tasks.ConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("%w (task is %s, verification %s)", err, conflict.Status, conflict.VerificationStatus)
	}
	return err
}
