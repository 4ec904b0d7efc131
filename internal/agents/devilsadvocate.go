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
	"github.com/quorum-labs/quorum/internal/fingerprint"
	"github.com/quorum-labs/quorum/internal/logger"
)

// DefaultCritiqueLookback is how far back the devil's advocate scans
// for decisions worth challenging.
const DefaultCritiqueLookback = 48 * time.Hour

const devilsAdvocatePrompt = `You are the devil's advocate. Given recent decisions, plans and high-priority tasks as JSON, challenge them.
Reply with a JSON array only:
[{"target":"title or id of what you are critiquing","severity":"info|low|medium|high|critical","assumption":"the unstated assumption","risk":"what could go wrong","alternative":"a different approach"}]
Critique substance, not phrasing. An empty array is a valid reply.`

var _ driving.Agent = (*DevilsAdvocate)(nil)

// DevilsAdvocate is the act-tier critique agent. Each critique lands
// twice: as an append-only critique event and as a fingerprint-deduped
// observation, so re-running over the same decisions merges instead of
// piling up duplicates.
type DevilsAdvocate struct {
	events       driven.EventStore
	tasks        driven.TaskStore
	observations driven.ObservationStore
	llm          driven.LLMService
	lookback     time.Duration
}

// NewDevilsAdvocate creates the critique agent.
func NewDevilsAdvocate(events driven.EventStore, tasks driven.TaskStore, observations driven.ObservationStore, llm driven.LLMService) *DevilsAdvocate {
	return &DevilsAdvocate{
		events:       events,
		tasks:        tasks,
		observations: observations,
		llm:          llm,
		lookback:     DefaultCritiqueLookback,
	}
}

// Name returns the agent class identifier.
func (d *DevilsAdvocate) Name() string { return "devils_advocate" }

// Tier returns the act tier.
func (d *DevilsAdvocate) Tier() domain.Tier { return domain.TierAct }

// critique is one entry in the LLM's reply.
type critique struct {
	Target      string `json:"target"`
	Severity    string `json:"severity"`
	Assumption  string `json:"assumption"`
	Risk        string `json:"risk"`
	Alternative string `json:"alternative"`
}

// Run reviews recent decisions and high-priority tasks and writes
// critiques back into memory.
func (d *DevilsAdvocate) Run(ctx context.Context) (string, error) {
	if d.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	now := time.Now().UTC()
	since := now.Add(-d.lookback)

	decisions, err := d.events.ListEvents(ctx, driven.EventFilter{
		Types: []string{"decision", "insight", "opportunity"},
		Since: since,
		Limit: 50,
	})
	if err != nil {
		return "", fmt.Errorf("listing decisions: %w", err)
	}
	decisions = d.withoutAlreadyCritiqued(ctx, decisions)

	urgent, err := d.tasks.ListTasks(ctx, driven.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskOpen, domain.TaskInProgress},
		Limit:    50,
	})
	if err != nil {
		return "", fmt.Errorf("listing tasks: %w", err)
	}
	urgent = highPriorityCreatedSince(urgent, since)

	if len(decisions) == 0 && len(urgent) == 0 {
		return "nothing to critique", nil
	}

	payload, err := json.Marshal(map[string]any{
		"decisions_and_plans": summarizeEvents(decisions, 50),
		"high_priority_tasks": summarizeTasks(urgent, 20),
	})
	if err != nil {
		return "", fmt.Errorf("building payload: %w", err)
	}

	raw, err := d.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: devilsAdvocatePrompt},
		{Role: "user", Content: string(payload)},
	}, driven.ChatOptions{})
	if err != nil {
		return "", fmt.Errorf("llm call: %w", err)
	}

	var critiques []critique
	if !parseJSONReply(raw, &critiques) {
		return "llm returned no parseable critiques", nil
	}

	stored := 0
	for _, c := range critiques {
		if d.store(ctx, c, decisions, urgent) {
			stored++
		}
	}

	return fmt.Sprintf("reviewed %d decision(s) and %d task(s), wrote %d critique(s)",
		len(decisions), len(urgent), stored), nil
}

// withoutAlreadyCritiqued drops decisions this agent has critiqued in
// a previous pass, identified through critique event references.
func (d *DevilsAdvocate) withoutAlreadyCritiqued(ctx context.Context, decisions []domain.Event) []domain.Event {
	prior, err := d.events.ListEvents(ctx, driven.EventFilter{
		Types:  []string{"critique"},
		Actors: []string{d.Name()},
	})
	if err != nil {
		logger.Warn("devils_advocate: listing prior critiques: %v", err)
		return decisions
	}

	seen := make(map[string]bool)
	for _, ev := range prior {
		for _, ref := range ev.RefIDs {
			seen[ref] = true
		}
	}

	out := decisions[:0]
	for _, ev := range decisions {
		if !seen[ev.ID] {
			out = append(out, ev)
		}
	}
	return out
}

// store writes one critique as an event plus a deduped observation.
func (d *DevilsAdvocate) store(ctx context.Context, c critique, decisions []domain.Event, tasks []domain.Task) bool {
	var parts []string
	if c.Assumption != "" {
		parts = append(parts, "Assumption: "+c.Assumption)
	}
	if c.Risk != "" {
		parts = append(parts, "Risk: "+c.Risk)
	}
	if c.Alternative != "" {
		parts = append(parts, "Alternative: "+c.Alternative)
	}
	if len(parts) == 0 {
		return false
	}
	body := strings.Join(parts, "\n")

	refID, refType := resolveTarget(c.Target, decisions, tasks)

	ev := &domain.Event{
		ID:       uuid.NewString(),
		Type:     "critique",
		Actor:    d.Name(),
		Title:    "Critique: " + c.Target,
		Body:     body,
		Metadata: map[string]any{"severity": c.Severity, "target": c.Target},
	}
	if refID != "" {
		ev.RefIDs = []string{refID}
	}
	if err := d.events.AppendEvent(ctx, ev); err != nil {
		logger.Warn("devils_advocate: appending critique event: %v", err)
		return false
	}

	obs := &domain.Observation{
		ID:          uuid.NewString(),
		Category:    domain.ObsCritique,
		Severity:    parseSeverity(c.Severity),
		Status:      domain.ObsOpen,
		Content:     body,
		SourceAgent: d.Name(),
		RefID:       refID,
		RefType:     refType,
		Fingerprint: fingerprint.Observation(string(domain.ObsCritique), d.Name(), body),
	}
	if _, err := d.observations.UpsertObservation(ctx, obs); err != nil {
		logger.Warn("devils_advocate: upserting observation: %v", err)
	}

	return true
}

// resolveTarget matches the LLM's free-text target back to a stored
// entity by id or title.
func resolveTarget(target string, decisions []domain.Event, tasks []domain.Task) (refID, refType string) {
	for _, ev := range decisions {
		if ev.ID == target || ev.Title == target {
			return ev.ID, "event"
		}
	}
	for _, task := range tasks {
		if task.ID == target || task.Title == target {
			return task.ID, "task"
		}
	}
	return "", ""
}

func highPriorityCreatedSince(tasks []domain.Task, since time.Time) []domain.Task {
	out := tasks[:0]
	for _, task := range tasks {
		if task.Priority.Rank() <= domain.PriorityHigh.Rank() && !task.CreatedAt.Before(since) {
			out = append(out, task)
		}
	}
	return out
}

func parseSeverity(s string) domain.ObservationSeverity {
	sev := domain.ObservationSeverity(s)
	if !sev.Valid() {
		return domain.SeverityMedium
	}
	return sev
}
