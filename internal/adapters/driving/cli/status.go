package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and agent health",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("Config: %s\n", configStore.Path())

	provider := configStore.GetString("llm.provider")
	if provider == "" {
		provider = "none (agents run rule-based passes only)"
	}
	cmd.Printf("LLM provider: %s\n", provider)

	if binary := configStore.GetString("reasoner.binary"); binary != "" {
		cmd.Printf("Reasoner: %s\n", binary)
	} else {
		cmd.Println("Reasoner: not configured (chat unavailable)")
	}

	cmd.Println()
	cmd.Println("Integrations:")
	for _, line := range integrationStatus() {
		cmd.Printf("  %s\n", line)
	}

	if scheduleStore != nil {
		schedules, err := scheduleStore.ListSchedules(context.Background())
		if err != nil {
			return fmt.Errorf("listing schedules: %w", err)
		}
		cmd.Println()
		cmd.Printf("Agents registered: %d\n", len(schedules))
	}
	return nil
}

// integrationStatus validates each integrations.<name> namespace: an
// integration is available when enabled and every other key in its
// namespace has a value.
func integrationStatus() []string {
	byName := make(map[string][]string)
	for _, key := range configStore.Keys("integrations.") {
		rest := strings.TrimPrefix(key, "integrations.")
		name, field, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		byName[name] = append(byName[name], field)
	}
	if len(byName) == 0 {
		return []string{"(none configured)"}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		if !configStore.GetBool("integrations." + name + ".enabled") {
			out = append(out, name+": disabled")
			continue
		}

		var missing []string
		for _, field := range byName[name] {
			if field == "enabled" {
				continue
			}
			if val, ok := configStore.Get("integrations." + name + "." + field); !ok || isZeroValue(val) {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			out = append(out, fmt.Sprintf("%s: enabled but missing %s", name, strings.Join(missing, ", ")))
		} else {
			out = append(out, name+": available")
		}
	}
	return out
}

func isZeroValue(val any) bool {
	switch v := val.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
