package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// DefaultReflectionLookback is the window a reflection covers.
const DefaultReflectionLookback = 24 * time.Hour

const strategistPrompt = `You reflect over recent activity and find patterns a busy person would miss.
Given recent documents, events and the open task list as JSON, reply with JSON only:
{"title":"...","observations":[{"theme":"...","detail":"...","evidence":"..."}],
"blocked_items":[{"title":"...","hypothesis":"why it is stuck"}],
"suggested_focus":["..."]}
Ground every observation in the provided data.`

var _ driving.Agent = (*Strategist)(nil)

// Strategist is the reflect-tier synthesis agent. Each pass writes a
// reflection document back through the ingestion pipeline, so the
// reflection itself becomes searchable memory, plus an insight event
// for visibility.
type Strategist struct {
	documents driven.DocumentStore
	events    driven.EventStore
	tasks     driven.TaskStore
	ingest    driving.IngestService
	llm       driven.LLMService
	lookback  time.Duration
}

// NewStrategist creates the reflection agent.
func NewStrategist(documents driven.DocumentStore, events driven.EventStore, tasks driven.TaskStore, ingest driving.IngestService, llm driven.LLMService) *Strategist {
	return &Strategist{
		documents: documents,
		events:    events,
		tasks:     tasks,
		ingest:    ingest,
		llm:       llm,
		lookback:  DefaultReflectionLookback,
	}
}

// Name returns the agent class identifier.
func (s *Strategist) Name() string { return "strategist" }

// Tier returns the reflect tier.
func (s *Strategist) Tier() domain.Tier { return domain.TierReflect }

// reflection is the shape the LLM is asked to produce.
type reflection struct {
	Title        string `json:"title"`
	Observations []struct {
		Theme    string `json:"theme"`
		Detail   string `json:"detail"`
		Evidence string `json:"evidence"`
	} `json:"observations"`
	BlockedItems []struct {
		Title      string `json:"title"`
		Hypothesis string `json:"hypothesis"`
	} `json:"blocked_items"`
	SuggestedFocus []string `json:"suggested_focus"`
}

// Run produces one reflection over the lookback window.
func (s *Strategist) Run(ctx context.Context) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	now := time.Now().UTC()
	since := now.Add(-s.lookback)

	docs, err := s.documents.ListDocuments(ctx, driven.DocumentFilter{Limit: 100})
	if err != nil {
		return "", fmt.Errorf("listing documents: %w", err)
	}
	events, err := s.events.ListEvents(ctx, driven.EventFilter{Since: since, Limit: 200})
	if err != nil {
		return "", fmt.Errorf("listing events: %w", err)
	}
	open, err := s.tasks.ListTasks(ctx, driven.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskOpen, domain.TaskInProgress, domain.TaskBlocked},
		Limit:    200,
	})
	if err != nil {
		return "", fmt.Errorf("listing tasks: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"period_hours": int(s.lookback.Hours()),
		"documents":    summarizeDocuments(recentDocuments(docs, since), 100),
		"events":       summarizeEvents(events, 100),
		"tasks":        summarizeTasks(open, 100),
	})
	if err != nil {
		return "", fmt.Errorf("building payload: %w", err)
	}

	raw, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: strategistPrompt},
		{Role: "user", Content: string(payload)},
	}, driven.ChatOptions{})
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}

	var parsed reflection
	if !parseJSONReply(raw, &parsed) || parsed.Title == "" && len(parsed.Observations) == 0 {
		return "llm returned no parseable reflection", nil
	}
	if parsed.Title == "" {
		parsed.Title = "Reflection " + now.Format("2006-01-02")
	}

	content := renderReflection(parsed)

	doc := &domain.Document{
		ID:      uuid.NewString(),
		Type:    domain.DocTypeReflection,
		Title:   parsed.Title,
		Content: content,
		Tags:    []string{"reflection", s.Name()},
		Metadata: map[string]any{
			"observation_count": len(parsed.Observations),
			"blocked_count":     len(parsed.BlockedItems),
		},
	}
	if _, err := s.ingest.IngestDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("storing reflection: %w", err)
	}

	ev := &domain.Event{
		ID:       uuid.NewString(),
		Type:     "insight",
		Actor:    s.Name(),
		Title:    parsed.Title,
		Body:     truncate(content, 2000),
		Metadata: map[string]any{"document_id": doc.ID},
		RefIDs:   []string{doc.ID},
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		logger.Warn("strategist: appending insight event: %v", err)
	}

	return fmt.Sprintf("created reflection with %d observation(s), %d blocked item(s), %d focus area(s)",
		len(parsed.Observations), len(parsed.BlockedItems), len(parsed.SuggestedFocus)), nil
}

// renderReflection formats the parsed reply as a markdown document.
func renderReflection(r reflection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)

	if len(r.Observations) > 0 {
		b.WriteString("## Observations\n\n")
		for _, obs := range r.Observations {
			fmt.Fprintf(&b, "**%s**: %s\n", obs.Theme, obs.Detail)
			if obs.Evidence != "" {
				fmt.Fprintf(&b, "  Evidence: %s\n", obs.Evidence)
			}
			b.WriteString("\n")
		}
	}

	if len(r.BlockedItems) > 0 {
		b.WriteString("## Blocked Items\n\n")
		for _, item := range r.BlockedItems {
			fmt.Fprintf(&b, "- **%s**: %s\n", item.Title, item.Hypothesis)
		}
		b.WriteString("\n")
	}

	if len(r.SuggestedFocus) > 0 {
		b.WriteString("## Suggested Focus\n\n")
		for _, focus := range r.SuggestedFocus {
			fmt.Fprintf(&b, "- %s\n", focus)
		}
	}

	return b.String()
}

func recentDocuments(docs []domain.Document, since time.Time) []domain.Document {
	out := docs[:0]
	for _, doc := range docs {
		if !doc.CreatedAt.Before(since) {
			out = append(out, doc)
		}
	}
	return out
}

// summarizeDocuments trims documents to previews for LLM payloads.
func summarizeDocuments(docs []domain.Document, max int) []map[string]any {
	if len(docs) > max {
		docs = docs[:max]
	}
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, map[string]any{
			"id":         doc.ID,
			"type":       string(doc.Type),
			"title":      doc.Title,
			"preview":    truncate(doc.Content, 500),
			"tags":       doc.Tags,
			"created_at": doc.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
