package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var agentHistoryLimit int

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage scheduled agents",
}

var agentRunCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Run an agent immediately",
	Long:  `Executes a registered agent right now, outside its normal cadence.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentRun,
}

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent schedules",
	RunE:  runAgentStatus,
}

var agentHistoryCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show recent runs for an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentHistory,
}

func init() {
	agentHistoryCmd.Flags().IntVarP(&agentHistoryLimit, "limit", "n", 10, "maximum number of runs")
	agentCmd.AddCommand(agentRunCmd)
	agentCmd.AddCommand(agentStatusCmd)
	agentCmd.AddCommand(agentHistoryCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgentRun(cmd *cobra.Command, args []string) error {
	if schedulerService == nil {
		return errors.New("scheduler not configured")
	}

	run, err := schedulerService.RunNow(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("agent run failed: %w", err)
	}

	if run.Success {
		cmd.Printf("%s: %s (%s)\n", run.Agent, run.Summary, run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	} else {
		cmd.Printf("%s failed: %s\n", run.Agent, run.Error)
	}
	return nil
}

func runAgentStatus(cmd *cobra.Command, _ []string) error {
	if scheduleStore == nil {
		return errors.New("schedule store not configured")
	}

	schedules, err := scheduleStore.ListSchedules(context.Background())
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}
	if len(schedules) == 0 {
		cmd.Println("No agents registered.")
		return nil
	}

	for _, s := range schedules {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		cmd.Printf("%-16s %-8s %s, every %s", s.Agent, string(s.Tier), state, s.EffectiveCadence())
		if !s.LastRun.IsZero() {
			cmd.Printf(", last run %s", s.LastRun.Format(time.RFC3339))
		}
		if s.LastError != "" {
			cmd.Printf(", last error: %s", s.LastError)
		}
		cmd.Println()
	}
	return nil
}

func runAgentHistory(cmd *cobra.Command, args []string) error {
	if scheduleStore == nil {
		return errors.New("schedule store not configured")
	}

	runs, err := scheduleStore.RunHistory(context.Background(), args[0], agentHistoryLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, run := range runs {
		outcome := run.Summary
		if !run.Success {
			outcome = "FAILED: " + run.Error
		}
		cmd.Printf("%s  %s\n", run.StartedAt.Format(time.RFC3339), outcome)
	}
	return nil
}
