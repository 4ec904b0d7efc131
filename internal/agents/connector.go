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

// Connector defaults.
const (
	// DefaultConnectionLookback is how far back the connector scans for
	// events it has not yet related to stored memory.
	DefaultConnectionLookback = 24 * time.Hour

	// DefaultConnectionBatch caps how many events one pass examines.
	DefaultConnectionBatch = 50

	// connectionMinScore is the similarity floor for candidate memories.
	connectionMinScore = 0.35

	// connectionMinConfidence drops links the LLM itself is unsure about.
	connectionMinConfidence = 0.5
)

const connectorPrompt = `You surface non-obvious relationships between a new piece of activity and stored memory.
Given the activity, candidate memories found by semantic search, and recent agent output as JSON, reply with a JSON array only:
[{"title":"...","description":"why these relate and why it matters","confidence":0.0,"related_ids":["..."],"considered_agents":["..."]}]
Only report relationships that add information; restating the search results is worthless. An empty array is a valid reply.`

var _ driving.Agent = (*Connector)(nil)

// Connector is the observe-tier relationship agent. For each recent
// event it has not yet processed, it searches memory semantically and
// asks the LLM which hits genuinely relate, writing connection events
// that link the two sides. Processed events are identified through
// those references, so a pass is naturally idempotent.
type Connector struct {
	events    driven.EventStore
	documents driven.DocumentStore
	recall    driving.RecallService
	ingest    driving.IngestService
	llm       driven.LLMService
	lookback  time.Duration
	batch     int
}

// ConnectorOption configures the connector.
type ConnectorOption func(*Connector)

// WithConnectionLookback overrides the scan window.
func WithConnectionLookback(d time.Duration) ConnectorOption {
	return func(c *Connector) {
		if d > 0 {
			c.lookback = d
		}
	}
}

// WithConnectionBatch overrides the per-pass event cap.
func WithConnectionBatch(n int) ConnectorOption {
	return func(c *Connector) {
		if n > 0 {
			c.batch = n
		}
	}
}

// NewConnector creates the relationship agent.
func NewConnector(events driven.EventStore, documents driven.DocumentStore, recall driving.RecallService, ingest driving.IngestService, llm driven.LLMService, opts ...ConnectorOption) *Connector {
	c := &Connector{
		events:    events,
		documents: documents,
		recall:    recall,
		ingest:    ingest,
		llm:       llm,
		lookback:  DefaultConnectionLookback,
		batch:     DefaultConnectionBatch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the agent class identifier.
func (c *Connector) Name() string { return "connector" }

// Tier returns the observe tier.
func (c *Connector) Tier() domain.Tier { return domain.TierObserve }

// connection is one entry in the LLM's reply.
type connection struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Confidence       float64  `json:"confidence"`
	RelatedIDs       []string `json:"related_ids"`
	ConsideredAgents []string `json:"considered_agents"`
}

// Run relates unprocessed recent events to stored memory.
func (c *Connector) Run(ctx context.Context) (string, error) {
	if c.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	if c.recall == nil {
		return "", domain.ErrEmbeddingUnavailable
	}
	now := time.Now().UTC()

	pending, err := c.unprocessedEvents(ctx, now.Add(-c.lookback))
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "no unprocessed events", nil
	}
	if len(pending) > c.batch {
		pending = pending[:c.batch]
	}

	activity, err := c.events.ListEvents(ctx, driven.EventFilter{
		Types: []string{"critique", "insight", "accountability", "opportunity"},
		Since: now.Add(-time.Hour),
		Limit: 15,
	})
	if err != nil {
		logger.Warn("connector: listing agent activity: %v", err)
	}

	var written []connection
	for i := range pending {
		written = append(written, c.relate(ctx, &pending[i], activity)...)
	}

	if len(written) > 0 {
		c.writeSummary(ctx, written, now)
	}

	return fmt.Sprintf("examined %d event(s), wrote %d connection(s)", len(pending), len(written)), nil
}

// unprocessedEvents returns recent events this agent has not yet
// related, excluding its own output. Connection event references are
// the processing marker.
func (c *Connector) unprocessedEvents(ctx context.Context, since time.Time) ([]domain.Event, error) {
	recent, err := c.events.ListEvents(ctx, driven.EventFilter{Since: since, Limit: 200})
	if err != nil {
		return nil, fmt.Errorf("listing recent events: %w", err)
	}

	prior, err := c.events.ListEvents(ctx, driven.EventFilter{
		Types:  []string{"connection"},
		Actors: []string{c.Name()},
	})
	if err != nil {
		return nil, fmt.Errorf("listing prior connections: %w", err)
	}
	seen := make(map[string]bool)
	for _, ev := range prior {
		for _, ref := range ev.RefIDs {
			seen[ref] = true
		}
	}

	out := recent[:0]
	for _, ev := range recent {
		if ev.Actor == c.Name() || seen[ev.ID] {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// relate searches memory for one event and writes the connections the
// LLM finds credible.
func (c *Connector) relate(ctx context.Context, ev *domain.Event, activity []domain.Event) []connection {
	query := truncate(strings.TrimSpace(ev.Title+"\n"+ev.Body), 2000)
	if query == "" {
		return nil
	}

	hits, err := c.recall.SearchText(ctx, query, domain.SearchFilter{MinScore: connectionMinScore}, 15)
	if err != nil {
		logger.Warn("connector: searching memory for event %s: %v", ev.ID, err)
		return nil
	}
	candidates := c.describeHits(ctx, hits, ev.ID)
	if len(candidates) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"activity": map[string]any{
			"id":    ev.ID,
			"type":  ev.Type,
			"actor": ev.Actor,
			"title": ev.Title,
			"body":  truncate(ev.Body, 2000),
		},
		"candidate_memories": candidates,
		"agent_activity":     summarizeEvents(activity, 15),
	})
	if err != nil {
		logger.Warn("connector: building payload: %v", err)
		return nil
	}

	raw, err := c.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: connectorPrompt},
		{Role: "user", Content: string(payload)},
	}, driven.ChatOptions{})
	if err != nil {
		logger.Warn("connector: llm call failed: %v", err)
		return nil
	}

	var found []connection
	if !parseJSONReply(raw, &found) {
		return nil
	}

	known := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		known[cand["id"].(string)] = true
	}

	var written []connection
	for _, conn := range found {
		if conn.Title == "" || conn.Confidence < connectionMinConfidence {
			continue
		}
		refs := []string{ev.ID}
		for _, id := range conn.RelatedIDs {
			if known[id] {
				refs = append(refs, id)
			}
		}
		connEv := &domain.Event{
			ID:     uuid.NewString(),
			Type:   "connection",
			Actor:  c.Name(),
			Title:  conn.Title,
			Body:   conn.Description,
			RefIDs: refs,
			Metadata: map[string]any{
				"confidence":      conn.Confidence,
				"source_event_id": ev.ID,
			},
		}
		if len(conn.ConsideredAgents) > 0 {
			connEv.Metadata["considered_agents"] = conn.ConsideredAgents
		}
		if err := c.events.AppendEvent(ctx, connEv); err != nil {
			logger.Warn("connector: appending connection event: %v", err)
			continue
		}
		written = append(written, conn)
	}
	return written
}

// describeHits resolves search hits to titles and previews the LLM can
// reason about. The event being related is excluded from its own hits.
func (c *Connector) describeHits(ctx context.Context, hits []domain.SearchHit, selfID string) []map[string]any {
	out := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		if hit.RefID == selfID {
			continue
		}
		switch {
		case strings.HasPrefix(hit.RefType, domain.RefDocument):
			doc, err := c.documents.GetDocument(ctx, hit.RefID)
			if err != nil {
				continue
			}
			out = append(out, map[string]any{
				"id":      doc.ID,
				"kind":    "document",
				"title":   doc.Title,
				"preview": truncate(doc.Content, 500),
				"score":   hit.Score,
			})
		case strings.HasPrefix(hit.RefType, domain.RefEvent):
			ev, err := c.events.GetEvent(ctx, hit.RefID)
			if err != nil {
				continue
			}
			out = append(out, map[string]any{
				"id":      ev.ID,
				"kind":    "event",
				"title":   ev.Title,
				"preview": truncate(ev.Body, 500),
				"score":   hit.Score,
			})
		}
	}
	return out
}

// writeSummary stores a digest of the pass through the ingestion
// pipeline, so the connections themselves become searchable.
func (c *Connector) writeSummary(ctx context.Context, written []connection, now time.Time) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Connections %s\n\n", now.Format("2006-01-02"))
	for _, conn := range written {
		fmt.Fprintf(&b, "- **%s**: %s\n", conn.Title, conn.Description)
	}

	doc := &domain.Document{
		ID:      uuid.NewString(),
		Type:    domain.DocTypeReport,
		Title:   "Connections " + now.Format("2006-01-02 15:04"),
		Content: b.String(),
		Tags:    []string{c.Name(), "auto-summary"},
		Metadata: map[string]any{
			"connection_count": len(written),
		},
	}
	if _, err := c.ingest.IngestDocument(ctx, doc); err != nil {
		logger.Warn("connector: storing summary: %v", err)
	}
}
