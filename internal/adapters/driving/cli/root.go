// Package cli wires the cobra command tree over the core services.
// Commands hold no business logic; they parse flags, call a driving
// port and render the result.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services injected by main before Execute.
var (
	ingestService    driving.IngestService
	recallService    driving.RecallService
	chatOrchestrator driving.ChatOrchestrator
	schedulerService driving.SchedulerService
	scheduleStore    driven.ScheduleStore
	configStore      driven.ConfigStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Agent memory and orchestration engine",
	Long: `Quorum maintains a shared memory of documents, events, tasks and
observations, keeps it searchable through embeddings, and runs a
roster of scheduled agents over it.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services bundles everything the command tree needs.
type Services struct {
	Ingest    driving.IngestService
	Recall    driving.RecallService
	Chat      driving.ChatOrchestrator
	Scheduler driving.SchedulerService
	Schedules driven.ScheduleStore
	Config    driven.ConfigStore
}

// SetServices injects the core services. Call before Execute.
func SetServices(s Services) {
	ingestService = s.Ingest
	recallService = s.Recall
	chatOrchestrator = s.Chat
	schedulerService = s.Scheduler
	scheduleStore = s.Schedules
	configStore = s.Config
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
