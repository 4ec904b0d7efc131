package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quorum-labs/quorum/internal/core/ports/driving"
)

var (
	chatSession string
	chatTimeout time.Duration
	chatCouncil bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Ask the reasoning process a question",
	Long: `Spawns the external reasoning process with the prompt and streams
its reply. The full transcript is persisted to the event log as part
of the session thread, including degraded and timed-out replies.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session thread ID (defaults to a fresh session)")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 0, "override the reply deadline")
	chatCmd.Flags().BoolVar(&chatCouncil, "council", false, "use the longer council deliberation deadline")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatOrchestrator == nil {
		return errors.New("chat orchestrator not configured")
	}

	sessionID := chatSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	timeout := chatTimeout
	if timeout <= 0 {
		timeout = driving.DefaultChatTimeout
		if chatCouncil {
			timeout = driving.DefaultCouncilTimeout
		}
	}

	stream, err := chatOrchestrator.Run(context.Background(), args[0], sessionID, timeout)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	for fragment := range stream {
		cmd.Print(fragment)
	}
	cmd.Println()
	cmd.Printf("(session %s)\n", sessionID)
	return nil
}
