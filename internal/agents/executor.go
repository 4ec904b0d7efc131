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

// Executor defaults.
const (
	// DefaultLookback is how far back the executor scans for activity.
	DefaultLookback = 24 * time.Hour

	// DefaultStaleAfter marks tasks untouched this long as stale.
	DefaultStaleAfter = 7 * 24 * time.Hour
)

const executorPrompt = `You extract actionable commitments from recent activity and keep the task list honest.
Given recent events and the current open tasks as JSON, reply with JSON only:
{"new_tasks":[{"title":"...","description":"...","priority":"critical|high|medium|low","owner":"...","due_at":"RFC3339 or empty"}],
"updated_tasks":[{"task_id":"...","status":"open|in_progress|done|blocked"}],
"accountability_events":[{"title":"...","body":"..."}]}
Only create tasks for concrete commitments. Never invent deadlines.`

var _ driving.Agent = (*Executor)(nil)

// Executor is the act-tier accountability agent: it extracts tasks
// from recent activity and surfaces overdue and stale work.
type Executor struct {
	tasks      driven.TaskStore
	events     driven.EventStore
	llm        driven.LLMService
	notifier   driven.Notifier
	lookback   time.Duration
	staleAfter time.Duration
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithLookback overrides the activity scan window.
func WithLookback(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// WithStaleAfter overrides the staleness cutoff.
func WithStaleAfter(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// NewExecutor creates the executor agent. llm and notifier may be nil;
// without an LLM only the rule-based accountability pass runs.
func NewExecutor(tasks driven.TaskStore, events driven.EventStore, llm driven.LLMService, notifier driven.Notifier, opts ...ExecutorOption) *Executor {
	e := &Executor{
		tasks:      tasks,
		events:     events,
		llm:        llm,
		notifier:   notifier,
		lookback:   DefaultLookback,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the agent class identifier.
func (e *Executor) Name() string { return "executor" }

// Tier returns the act tier.
func (e *Executor) Tier() domain.Tier { return domain.TierAct }

// executorReply is the shape the LLM is asked to produce.
type executorReply struct {
	NewTasks []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Owner       string `json:"owner"`
		DueAt       string `json:"due_at"`
	} `json:"new_tasks"`
	UpdatedTasks []struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	} `json:"updated_tasks"`
	AccountabilityEvents []struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"accountability_events"`
}

// Run executes one pass: rule-based accountability first, then LLM
// task extraction over recent activity.
func (e *Executor) Run(ctx context.Context) (string, error) {
	now := time.Now().UTC()

	open, err := e.tasks.ListTasks(ctx, driven.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskOpen, domain.TaskInProgress, domain.TaskBlocked},
	})
	if err != nil {
		return "", fmt.Errorf("listing open tasks: %w", err)
	}

	accountability := e.flagOverdueAndStale(ctx, open, now)

	created, updated := 0, 0
	if e.llm != nil {
		recent, err := e.events.ListEvents(ctx, driven.EventFilter{Since: now.Add(-e.lookback), Limit: 200})
		if err != nil {
			return "", fmt.Errorf("listing recent events: %w", err)
		}
		if len(recent) > 0 {
			c, u, a := e.extractFromActivity(ctx, recent, open)
			created, updated = c, u
			accountability += a
		}
	}

	return fmt.Sprintf("created %d task(s), updated %d, logged %d accountability event(s)",
		created, updated, accountability), nil
}

// flagOverdueAndStale writes accountability events for tasks that are
// past due or have gone quiet. Overdue tasks also notify.
func (e *Executor) flagOverdueAndStale(ctx context.Context, open []domain.Task, now time.Time) int {
	count := 0
	staleCutoff := now.Add(-e.staleAfter)

	for i := range open {
		task := &open[i]

		switch {
		case task.DueAt != nil && task.DueAt.Before(now):
			daysOverdue := int(now.Sub(*task.DueAt).Hours() / 24)
			body := fmt.Sprintf("Task %q was due %s (%d day(s) ago) and is still %s. Owner: %s.",
				task.Title, task.DueAt.Format("2006-01-02"), daysOverdue, task.Status, ownerOrUnassigned(task.Owner))
			if e.appendAccountability(ctx, "Overdue: "+task.Title, body, task.ID) {
				count++
				e.notify(ctx, "Overdue: "+task.Title, body, "high")
			}

		case task.UpdatedAt.Before(staleCutoff):
			daysStale := int(now.Sub(task.UpdatedAt).Hours() / 24)
			body := fmt.Sprintf("Task %q has not been touched in %d days. Status: %s. Owner: %s. Is this still relevant, and if so what is blocking it?",
				task.Title, daysStale, task.Status, ownerOrUnassigned(task.Owner))
			if e.appendAccountability(ctx, "Stale: "+task.Title, body, task.ID) {
				count++
			}
		}
	}
	return count
}

// extractFromActivity asks the LLM to pull commitments out of recent
// events and apply task updates.
func (e *Executor) extractFromActivity(ctx context.Context, recent []domain.Event, open []domain.Task) (created, updated, accountability int) {
	payload, err := json.Marshal(map[string]any{
		"recent_events": summarizeEvents(recent, 50),
		"open_tasks":    summarizeTasks(open, 50),
	})
	if err != nil {
		logger.Warn("executor: building payload: %v", err)
		return 0, 0, 0
	}

	raw, err := e.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: executorPrompt},
		{Role: "user", Content: string(payload)},
	}, driven.ChatOptions{})
	if err != nil {
		logger.Warn("executor: llm call failed: %v", err)
		return 0, 0, 0
	}

	var reply executorReply
	if !parseJSONReply(raw, &reply) {
		return 0, 0, 0
	}

	for _, nt := range reply.NewTasks {
		if nt.Title == "" {
			continue
		}
		task := &domain.Task{
			ID:          uuid.NewString(),
			Title:       nt.Title,
			Description: nt.Description,
			Status:      domain.TaskOpen,
			Priority:    parsePriority(nt.Priority),
			Owner:       nt.Owner,
		}
		if due, err := time.Parse(time.RFC3339, nt.DueAt); err == nil {
			task.DueAt = &due
		}
		if err := e.tasks.CreateTask(ctx, task); err != nil {
			logger.Warn("executor: creating task %q: %v", nt.Title, err)
			continue
		}
		created++
	}

	for _, ut := range reply.UpdatedTasks {
		status := domain.TaskStatus(ut.Status)
		if ut.TaskID == "" || !status.Valid() {
			continue
		}
		if _, err := e.tasks.UpdateTask(ctx, ut.TaskID, domain.TaskUpdate{Status: &status}); err != nil {
			logger.Warn("executor: updating task %s: %v", ut.TaskID, err)
			continue
		}
		updated++
	}

	for _, ae := range reply.AccountabilityEvents {
		if ae.Title == "" {
			continue
		}
		if e.appendAccountability(ctx, ae.Title, ae.Body, "") {
			accountability++
		}
	}

	return created, updated, accountability
}

func (e *Executor) appendAccountability(ctx context.Context, title, body, refID string) bool {
	ev := &domain.Event{
		ID:    uuid.NewString(),
		Type:  "accountability",
		Actor: e.Name(),
		Title: title,
		Body:  body,
	}
	if refID != "" {
		ev.RefIDs = []string{refID}
	}
	if err := e.events.AppendEvent(ctx, ev); err != nil {
		logger.Warn("executor: appending accountability event: %v", err)
		return false
	}
	return true
}

func (e *Executor) notify(ctx context.Context, title, body, severity string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.Notify(ctx, driven.Notification{
		Agent:    e.Name(),
		Title:    title,
		Body:     body,
		Severity: severity,
	})
	if err != nil {
		logger.Warn("executor: notification failed: %v", err)
	}
}

func ownerOrUnassigned(owner string) string {
	if owner == "" {
		return "unassigned"
	}
	return owner
}

func parsePriority(s string) domain.TaskPriority {
	p := domain.TaskPriority(s)
	if !p.Valid() {
		return domain.PriorityMedium
	}
	return p
}

// summarizeEvents trims events to the fields the LLM needs.
func summarizeEvents(events []domain.Event, max int) []map[string]any {
	if len(events) > max {
		events = events[:max]
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"id":         ev.ID,
			"type":       ev.Type,
			"actor":      ev.Actor,
			"title":      ev.Title,
			"body":       truncate(ev.Body, 2000),
			"created_at": ev.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

// summarizeTasks trims tasks to the fields the LLM needs.
func summarizeTasks(tasks []domain.Task, max int) []map[string]any {
	if len(tasks) > max {
		tasks = tasks[:max]
	}
	out := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		entry := map[string]any{
			"id":          task.ID,
			"title":       task.Title,
			"description": truncate(task.Description, 1000),
			"status":      string(task.Status),
			"priority":    string(task.Priority),
			"owner":       task.Owner,
		}
		if task.DueAt != nil {
			entry["due_at"] = task.DueAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	return out
}
