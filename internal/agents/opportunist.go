package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// DefaultOpportunityLookback is how far back the opportunist scans for
// exploitable activity.
const DefaultOpportunityLookback = 48 * time.Hour

const opportunistPrompt = `You spot time-sensitive openings and leverage a busy person would miss.
Given recent documents, events, open tasks and other agents' output as JSON, reply with a JSON array only:
[{"title":"...","description":"the opening and why now","effort":"high|medium|low","impact":"high|medium|low","time_sensitive":true,"suggested_action":"one concrete next step, or empty"}]
Only report openings grounded in the provided data. An empty array is a valid reply.`

var _ driving.Agent = (*Opportunist)(nil)

// Opportunist is the act-tier opening spotter. It reads broadly across
// memory, including the other agents' output, and writes opportunity
// events; an opening with a concrete next step also becomes a task.
type Opportunist struct {
	documents driven.DocumentStore
	events    driven.EventStore
	tasks     driven.TaskStore
	llm       driven.LLMService
	lookback  time.Duration
}

// OpportunistOption configures the opportunist.
type OpportunistOption func(*Opportunist)

// WithOpportunityLookback overrides the scan window.
func WithOpportunityLookback(d time.Duration) OpportunistOption {
	return func(o *Opportunist) {
		if d > 0 {
			o.lookback = d
		}
	}
}

// NewOpportunist creates the opening-spotter agent.
func NewOpportunist(documents driven.DocumentStore, events driven.EventStore, tasks driven.TaskStore, llm driven.LLMService, opts ...OpportunistOption) *Opportunist {
	o := &Opportunist{
		documents: documents,
		events:    events,
		tasks:     tasks,
		llm:       llm,
		lookback:  DefaultOpportunityLookback,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the agent class identifier.
func (o *Opportunist) Name() string { return "opportunist" }

// Tier returns the act tier.
func (o *Opportunist) Tier() domain.Tier { return domain.TierAct }

// opportunity is one entry in the LLM's reply.
type opportunity struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Effort          string `json:"effort"`
	Impact          string `json:"impact"`
	TimeSensitive   bool   `json:"time_sensitive"`
	SuggestedAction string `json:"suggested_action"`
}

// Run scans recent memory for openings and writes them back.
func (o *Opportunist) Run(ctx context.Context) (string, error) {
	if o.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	now := time.Now().UTC()
	since := now.Add(-o.lookback)

	docs, err := o.documents.ListDocuments(ctx, driven.DocumentFilter{Limit: 100})
	if err != nil {
		return "", fmt.Errorf("listing documents: %w", err)
	}
	recentDocs := recentDocuments(docs, since)

	recent, err := o.events.ListEvents(ctx, driven.EventFilter{Since: since, Limit: 100})
	if err != nil {
		return "", fmt.Errorf("listing recent events: %w", err)
	}
	if len(recentDocs) == 0 && len(recent) == 0 {
		return "no recent activity", nil
	}

	open, err := o.tasks.ListTasks(ctx, driven.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskOpen, domain.TaskInProgress, domain.TaskBlocked},
		Limit:    100,
	})
	if err != nil {
		return "", fmt.Errorf("listing open tasks: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"period_hours":        int(o.lookback.Hours()),
		"documents":           summarizeDocuments(recentDocs, 100),
		"events":              summarizeEvents(recent, 100),
		"open_tasks":          summarizeTasks(open, 100),
		"connections":         o.agentOutput(ctx, "connection", 10),
		"accountability":      o.agentOutput(ctx, "accountability", 10),
		"reflections":         o.agentOutput(ctx, "insight", 5),
		"prior_opportunities": o.agentOutput(ctx, "opportunity", 10),
	})
	if err != nil {
		return "", fmt.Errorf("building payload: %w", err)
	}

	raw, err := o.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: opportunistPrompt},
		{Role: "user", Content: string(payload)},
	}, driven.ChatOptions{})
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}

	var openings []opportunity
	if !parseJSONReply(raw, &openings) {
		return "llm returned no parseable opportunities", nil
	}

	events, created := 0, 0
	for _, opp := range openings {
		if opp.Title == "" {
			continue
		}
		evID, ok := o.appendOpportunity(ctx, opp)
		if !ok {
			continue
		}
		events++
		if opp.SuggestedAction != "" && o.createTask(ctx, opp, evID) {
			created++
		}
	}

	return fmt.Sprintf("found %d opportunity(ies), created %d task(s)", events, created), nil
}

// agentOutput fetches recent events of one type for the LLM payload.
// Failures degrade to an empty section rather than aborting the pass.
func (o *Opportunist) agentOutput(ctx context.Context, eventType string, limit int) []map[string]any {
	events, err := o.events.ListEvents(ctx, driven.EventFilter{
		Types: []string{eventType},
		Limit: limit,
	})
	if err != nil {
		logger.Warn("opportunist: listing %s events: %v", eventType, err)
		return nil
	}
	return summarizeEvents(events, limit)
}

func (o *Opportunist) appendOpportunity(ctx context.Context, opp opportunity) (string, bool) {
	ev := &domain.Event{
		ID:    uuid.NewString(),
		Type:  "opportunity",
		Actor: o.Name(),
		Title: opp.Title,
		Body:  opp.Description,
		Metadata: map[string]any{
			"effort":         opp.Effort,
			"impact":         opp.Impact,
			"time_sensitive": opp.TimeSensitive,
		},
	}
	if err := o.events.AppendEvent(ctx, ev); err != nil {
		logger.Warn("opportunist: appending opportunity event: %v", err)
		return "", false
	}
	return ev.ID, true
}

// createTask turns a suggested action into an open task, prioritized by
// the reported impact.
func (o *Opportunist) createTask(ctx context.Context, opp opportunity, evID string) bool {
	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       opp.SuggestedAction,
		Description: fmt.Sprintf("%s\n\nOpening: %s", opp.Description, opp.Title),
		Status:      domain.TaskOpen,
		Priority:    impactPriority(opp.Impact),
		Metadata: map[string]any{
			"source_event_id": evID,
			"source_agent":    o.Name(),
		},
	}
	if err := o.tasks.CreateTask(ctx, task); err != nil {
		logger.Warn("opportunist: creating task %q: %v", opp.SuggestedAction, err)
		return false
	}
	return true
}

// impactPriority maps reported impact onto task priority. Unknown
// values land in the middle.
func impactPriority(impact string) domain.TaskPriority {
	switch impact {
	case "high":
		return domain.PriorityHigh
	case "medium":
		return domain.PriorityMedium
	case "low":
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}
