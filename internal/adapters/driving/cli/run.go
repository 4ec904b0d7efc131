package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorum-labs/quorum/internal/adapters/driving/watch"
	"github.com/quorum-labs/quorum/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler loop",
	Long: `Starts the agent scheduler and, when watch directories are
configured, the drop-folder ingester. Blocks until interrupted.`,
	RunE: runRun,
}

var (
	watchDirs []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir...]",
	Short: "Ingest files dropped into directories",
	Long: `Watches directories and ingests every supported file created or
modified in them. Without arguments, uses the configured
ingest.watch_dirs. Blocks until interrupted.`,
	RunE: runWatch,
}

func init() {
	runCmd.Flags().StringSliceVar(&watchDirs, "watch", nil, "directories to watch for dropped files")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config edits (quiet hours, cadences, watch dirs) take effect
	// without a restart.
	if configStore != nil {
		stopWatch, err := configStore.Watch()
		if err != nil {
			logger.Warn("config hot reload unavailable: %v", err)
		} else {
			defer stopWatch()
		}
	}

	if dirs := configuredWatchDirs(); len(dirs) > 0 && ingestService != nil {
		w, err := watch.NewWatcher(ingestService, dirs)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watcher stopped: %v", err)
			}
		}()
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dirs := args
	if len(dirs) == 0 {
		dirs = configuredWatchDirs()
	}
	if len(dirs) == 0 {
		return errors.New("no directories given and ingest.watch_dirs is not configured")
	}

	w, err := watch.NewWatcher(ingestService, dirs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Println("Watching. Press Ctrl+C to stop.")
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func configuredWatchDirs() []string {
	if len(watchDirs) > 0 {
		return watchDirs
	}
	if configStore == nil {
		return nil
	}
	return configStore.GetStringSlice("ingest.watch_dirs")
}
