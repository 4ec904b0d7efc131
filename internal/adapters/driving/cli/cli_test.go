package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
)

// ==================== Fakes ====================

type stubIngest struct {
	lastDoc  *domain.Document
	embedded bool
}

func (s *stubIngest) IngestDocument(_ context.Context, doc *domain.Document) (bool, error) {
	s.lastDoc = doc
	return s.embedded, nil
}

func (s *stubIngest) EmbedAndStore(context.Context, string, string, string) bool { return true }

func (s *stubIngest) ReembedDocument(context.Context, string) (bool, error) { return true, nil }

type stubRecall struct {
	hits []domain.SearchHit
}

func (s *stubRecall) Search(context.Context, []float32, domain.SearchFilter, int) ([]domain.SearchHit, error) {
	return s.hits, nil
}

func (s *stubRecall) SearchText(context.Context, string, domain.SearchFilter, int) ([]domain.SearchHit, error) {
	return s.hits, nil
}

type stubChat struct {
	fragments []string
}

func (s *stubChat) Run(context.Context, string, string, time.Duration) (<-chan string, error) {
	out := make(chan string, len(s.fragments))
	for _, f := range s.fragments {
		out <- f
	}
	close(out)
	return out, nil
}

type stubScheduler struct {
	run   *domain.AgentRun
	block bool
}

func (s *stubScheduler) Register(driving.Agent) {}

func (s *stubScheduler) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *stubScheduler) Stop() error { return nil }

func (s *stubScheduler) RunNow(context.Context, string) (*domain.AgentRun, error) {
	return s.run, nil
}

type stubScheduleStore struct {
	schedules []domain.AgentSchedule
	runs      []domain.AgentRun
}

func (s *stubScheduleStore) GetSchedule(context.Context, string) (*domain.AgentSchedule, error) {
	return nil, domain.ErrNotFound
}

func (s *stubScheduleStore) ListSchedules(context.Context) ([]domain.AgentSchedule, error) {
	return s.schedules, nil
}

func (s *stubScheduleStore) SaveSchedule(context.Context, *domain.AgentSchedule) error { return nil }
func (s *stubScheduleStore) RecordRun(context.Context, *domain.AgentRun) error         { return nil }

func (s *stubScheduleStore) RunHistory(context.Context, string, int) ([]domain.AgentRun, error) {
	return s.runs, nil
}

func (s *stubScheduleStore) PruneRuns(context.Context, int) error { return nil }

type stubConfig struct {
	values     map[string]any
	watchCalls int
	watchStops int
}

func (s *stubConfig) Get(key string) (any, bool) {
	val, ok := s.values[key]
	return val, ok
}

func (s *stubConfig) GetString(key string) string {
	val, _ := s.values[key].(string)
	return val
}

func (s *stubConfig) GetInt(key string) int {
	val, _ := s.values[key].(int)
	return val
}

func (s *stubConfig) GetBool(key string) bool {
	val, _ := s.values[key].(bool)
	return val
}

func (s *stubConfig) GetStringSlice(key string) []string {
	val, _ := s.values[key].([]string)
	return val
}

func (s *stubConfig) Keys(prefix string) []string {
	var out []string
	for key := range s.values {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func (s *stubConfig) Set(key string, value any) error { s.values[key] = value; return nil }
func (s *stubConfig) Save() error                     { return nil }
func (s *stubConfig) Load() error                     { return nil }
func (s *stubConfig) Path() string                    { return "/tmp/config.toml" }

func (s *stubConfig) Watch() (func(), error) {
	s.watchCalls++
	return func() { s.watchStops++ }, nil
}

func setupTestServices() func() {
	oldIngest := ingestService
	oldRecall := recallService
	oldChat := chatOrchestrator
	oldScheduler := schedulerService
	oldSchedules := scheduleStore
	oldConfig := configStore

	ingestService = &stubIngest{embedded: true}
	recallService = &stubRecall{hits: []domain.SearchHit{
		{RefID: "doc-1", RefType: "document", Score: 0.91},
	}}
	chatOrchestrator = &stubChat{fragments: []string{"Hello ", "world"}}
	schedulerService = &stubScheduler{run: &domain.AgentRun{
		Agent: "executor", Success: true, Summary: "created 1 task(s)",
	}}
	scheduleStore = &stubScheduleStore{}
	configStore = &stubConfig{values: map[string]any{
		"llm.provider": "ollama",
	}}

	return func() {
		ingestService = oldIngest
		recallService = oldRecall
		chatOrchestrator = oldChat
		schedulerService = oldScheduler
		scheduleStore = oldSchedules
		configStore = oldConfig
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

// ==================== Tests ====================

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_ErrorsWithoutService(t *testing.T) {
	old := recallService
	recallService = nil
	defer func() { recallService = old }()

	_, err := execute(t, "search", "anything")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "vendor contract")
	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "0.910")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "search", "--json", "vendor contract")
	require.NoError(t, err)
	assert.Contains(t, out, `"RefID": "doc-1"`)
}

func TestIngestCmd_ReadsFile(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("remember this"), 0600))

	out, err := execute(t, "ingest", "--type", "note", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested")

	stub := ingestService.(*stubIngest)
	require.NotNil(t, stub.lastDoc)
	assert.Equal(t, "notes", stub.lastDoc.Title)
	assert.Equal(t, domain.DocTypeNote, stub.lastDoc.Type)
	assert.Equal(t, "remember this", stub.lastDoc.Content)
}

func TestIngestCmd_RejectsUnknownType(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := execute(t, "ingest", "--type", "hologram", path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown document type")
}

func TestIngestCmd_ReportsUnembedded(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	ingestService.(*stubIngest).embedded = false

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	out, err := execute(t, "ingest", "--type", "note", path)
	require.NoError(t, err)
	assert.Contains(t, out, "not yet searchable")
}

func TestChatCmd_StreamsReply(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "chat", "what changed today?")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "session")
}

func TestChatCmd_ErrorsWithoutService(t *testing.T) {
	old := chatOrchestrator
	chatOrchestrator = nil
	defer func() { chatOrchestrator = old }()

	_, err := execute(t, "chat", "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestAgentRunCmd_PrintsSummary(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "agent", "run", "executor")
	require.NoError(t, err)
	assert.Contains(t, out, "executor: created 1 task(s)")
}

func TestAgentStatusCmd_ListsSchedules(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	scheduleStore.(*stubScheduleStore).schedules = []domain.AgentSchedule{
		{Agent: "executor", Tier: domain.TierAct, Enabled: true},
		{Agent: "strategist", Tier: domain.TierReflect, Enabled: false, LastError: "llm unreachable"},
	}

	out, err := execute(t, "agent", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "executor")
	assert.Contains(t, out, "every 1h0m0s")
	assert.Contains(t, out, "disabled")
	assert.Contains(t, out, "llm unreachable")
}

func TestAgentHistoryCmd_ListsRuns(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	scheduleStore.(*stubScheduleStore).runs = []domain.AgentRun{
		{Agent: "executor", StartedAt: time.Now(), Success: true, Summary: "created 2 task(s)"},
		{Agent: "executor", StartedAt: time.Now(), Success: false, Error: "store locked"},
	}

	out, err := execute(t, "agent", "history", "executor")
	require.NoError(t, err)
	assert.Contains(t, out, "created 2 task(s)")
	assert.Contains(t, out, "FAILED: store locked")
}

func TestRunCmd_StartsConfigWatch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Scheduler running")

	// Hot reload is armed for the life of the loop and released on exit.
	cfg := configStore.(*stubConfig)
	assert.Equal(t, 1, cfg.watchCalls)
	assert.Equal(t, 1, cfg.watchStops)
}

func TestStatusCmd_ReportsIntegrationAvailability(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	configStore.(*stubConfig).values = map[string]any{
		"llm.provider":                  "anthropic",
		"integrations.email.enabled":    true,
		"integrations.email.address":    "me@example.com",
		"integrations.webhook.enabled":  true,
		"integrations.webhook.url":      "",
		"integrations.calendar.enabled": false,
	}

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "LLM provider: anthropic")
	assert.Contains(t, out, "email: available")
	assert.Contains(t, out, "webhook: enabled but missing url")
	assert.Contains(t, out, "calendar: disabled")
}

func TestStatusCmd_NoIntegrations(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "(none configured)")
	assert.Contains(t, out, "Reasoner: not configured")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quorum version")
}
