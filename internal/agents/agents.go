// Package agents holds the scheduled agent classes. Each agent reads
// shared memory, consults the LLM, and writes tasks, observations and
// events back; agents never invoke each other directly.
package agents

import (
	"encoding/json"
	"strings"

	"github.com/quorum-labs/quorum/internal/logger"
)

// parseJSONReply unmarshals an LLM reply into out, tolerating markdown
// code fences around the JSON. A malformed reply leaves out untouched
// and returns false; agents degrade to doing nothing rather than fail.
func parseJSONReply(raw string, out any) bool {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = cleaned[3:]
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		preview := raw
		if len(preview) > 200 {
			preview = preview[:200]
		}
		logger.Warn("unparseable LLM reply: %s", preview)
		return false
	}
	return true
}

// truncate caps s at n bytes for LLM payloads.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
