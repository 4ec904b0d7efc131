package services

import (
	"context"
	"errors"
	"sync"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// In-memory test doubles for the driven ports.

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[string]*domain.Document)}
}

func (f *fakeDocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentStore) ListDocuments(_ context.Context, _ driven.DocumentFilter) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeDocumentStore) MarkEmbedded(_ context.Context, id string, embedded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Embedded = embedded
	return nil
}

func (f *fakeDocumentStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

type embKey struct{ refID, refType string }

type fakeEmbeddingStore struct {
	mu   sync.Mutex
	rows map[embKey]domain.Embedding
}

func newFakeEmbeddingStore() *fakeEmbeddingStore {
	return &fakeEmbeddingStore{rows: make(map[embKey]domain.Embedding)}
}

func (f *fakeEmbeddingStore) UpsertEmbedding(_ context.Context, emb *domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[embKey{emb.RefID, emb.RefType}] = *emb
	return nil
}

func (f *fakeEmbeddingStore) GetEmbedding(_ context.Context, refID, refType string) (*domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	emb, ok := f.rows[embKey{refID, refType}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &emb, nil
}

func (f *fakeEmbeddingStore) DeleteFamily(_ context.Context, refID, base string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.rows {
		if k.refID == refID && domain.InRefFamily(k.refType, base) {
			delete(f.rows, k)
		}
	}
	return nil
}

func (f *fakeEmbeddingStore) ListEmbeddings(_ context.Context, base string, includeChunks bool) ([]domain.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Embedding
	for k, emb := range f.rows {
		switch {
		case base == "":
		case includeChunks && !domain.InRefFamily(k.refType, base):
			continue
		case !includeChunks && k.refType != base:
			continue
		}
		out = append(out, emb)
	}
	return out, nil
}

// fakeEmbedder returns a constant-dimension vector derived from text
// length, and can be told to fail after a number of successful calls.
type fakeEmbedder struct {
	mu        sync.Mutex
	dims      int
	calls     int
	failAfter int // fail when calls > failAfter; 0 disables
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errors.New("embedding provider unavailable")
	}
	vec := make([]float32, f.dims)
	vec[0] = float32(len(text))
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) Ping(context.Context) error { return nil }

func (f *fakeEmbedder) Close() error { return nil }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []domain.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{}
}

func (f *fakeEventStore) AppendEvent(_ context.Context, ev *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.events {
		if existing.ID == ev.ID {
			return domain.ErrImmutable
		}
	}
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeEventStore) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			ev := f.events[i]
			return &ev, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventStore) ListEvents(_ context.Context, _ driven.EventFilter) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeEventStore) ListThread(_ context.Context, threadID string) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, ev := range f.events {
		if ev.ThreadID == threadID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEventStore) RenameThread(_ context.Context, threadID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ThreadID == threadID {
			f.events[i].ThreadTitle = title
		}
	}
	return nil
}

func (f *fakeEventStore) all() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out
}

type fakeScheduleStore struct {
	mu     sync.Mutex
	scheds map[string]domain.AgentSchedule
	runs   []domain.AgentRun
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{scheds: make(map[string]domain.AgentSchedule)}
}

func (f *fakeScheduleStore) GetSchedule(_ context.Context, agent string) (*domain.AgentSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sched, ok := f.scheds[agent]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

func (f *fakeScheduleStore) ListSchedules(_ context.Context) ([]domain.AgentSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AgentSchedule, 0, len(f.scheds))
	for _, sched := range f.scheds {
		out = append(out, sched)
	}
	return out, nil
}

func (f *fakeScheduleStore) SaveSchedule(_ context.Context, sched *domain.AgentSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheds[sched.Agent] = *sched
	return nil
}

func (f *fakeScheduleStore) RecordRun(_ context.Context, run *domain.AgentRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeScheduleStore) RunHistory(_ context.Context, agent string, limit int) ([]domain.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AgentRun
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].Agent == agent {
			out = append(out, f.runs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeScheduleStore) PruneRuns(context.Context, int) error { return nil }

func (f *fakeScheduleStore) allRuns() []domain.AgentRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AgentRun, len(f.runs))
	copy(out, f.runs)
	return out
}

// fakeProcess scripts a reasoner invocation for orchestrator tests.
type fakeProcess struct {
	output      chan string
	diagnostics chan string
	waitErr     error
	killed      chan struct{}
	killOnce    sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		output:      make(chan string, 16),
		diagnostics: make(chan string, 16),
		killed:      make(chan struct{}),
	}
}

func (p *fakeProcess) Output() <-chan string      { return p.output }
func (p *fakeProcess) Diagnostics() <-chan string { return p.diagnostics }
func (p *fakeProcess) Wait() error                { return p.waitErr }

func (p *fakeProcess) Kill() error {
	p.killOnce.Do(func() { close(p.killed) })
	return nil
}

type fakeLauncher struct {
	mu        sync.Mutex
	proc      *fakeProcess
	launchErr error
}

func (l *fakeLauncher) Launch(context.Context, driven.ReasonerRequest) (driven.ReasonerProcess, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.proc, nil
}

func (l *fakeLauncher) setProc(p *fakeProcess) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.proc = p
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []driven.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n driven.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
