package main

import (
	"fmt"
	"os"

	"github.com/quorum-labs/quorum/internal/adapters/driven/config/file"
	"github.com/quorum-labs/quorum/internal/adapters/driven/embedding"
	ollamaembed "github.com/quorum-labs/quorum/internal/adapters/driven/embedding/ollama"
	"github.com/quorum-labs/quorum/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/quorum-labs/quorum/internal/adapters/driven/llm/ollama"
	"github.com/quorum-labs/quorum/internal/adapters/driven/notify/webhook"
	reasonerexec "github.com/quorum-labs/quorum/internal/adapters/driven/reasoner/exec"
	"github.com/quorum-labs/quorum/internal/adapters/driven/storage/sqlite"
	"github.com/quorum-labs/quorum/internal/adapters/driving/cli"
	"github.com/quorum-labs/quorum/internal/agents"
	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/services"
	"github.com/quorum-labs/quorum/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	embedder := embedding.NewRateLimited(
		ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
		}),
		float64(cfg.GetInt("embedding.rate_per_second")),
		cfg.GetInt("embedding.burst"),
	)

	ingest := services.NewIngestService(store.DocumentStore(), store.EmbeddingStore(), embedder)
	recall := services.NewRecallService(store.EmbeddingStore(), embedder)

	llm := buildLLM(cfg)
	notifier := buildNotifier(cfg)

	schedCfg := schedulerConfig(cfg)
	scheduler := services.NewScheduler(store.ScheduleStore(), schedCfg)

	// All agent notifications pass through the quiet-hours gate.
	gated := notifier
	if notifier != nil {
		gated = services.NewQuietHoursNotifier(notifier, schedCfg.Quiet, nil)
	}

	scheduler.Register(agents.NewConnector(store.EventStore(), store.DocumentStore(), recall, ingest, llm))
	scheduler.Register(agents.NewExecutor(store.TaskStore(), store.EventStore(), llm, gated))
	scheduler.Register(agents.NewOpportunist(store.DocumentStore(), store.EventStore(), store.TaskStore(), llm))
	scheduler.Register(agents.NewDevilsAdvocate(store.EventStore(), store.TaskStore(), store.ObservationStore(), llm))
	scheduler.Register(agents.NewStrategist(store.DocumentStore(), store.EventStore(), store.TaskStore(), ingest, llm))

	svcs := cli.Services{
		Ingest:    ingest,
		Recall:    recall,
		Scheduler: scheduler,
		Schedules: store.ScheduleStore(),
		Config:    cfg,
	}

	if launcher, err := reasonerexec.NewLauncher(reasonerexec.Config{
		BinaryPath: cfg.GetString("reasoner.binary"),
	}); err != nil {
		logger.Debug("reasoner unavailable: %v", err)
	} else {
		svcs.Chat = services.NewChatOrchestrator(launcher, store.EventStore())
	}

	cli.SetServices(svcs)
	return cli.Execute()
}

// buildLLM picks the provider variant from configuration. A missing or
// unknown provider leaves the LLM nil; agents then run their
// rule-based passes only.
func buildLLM(cfg driven.ConfigStore) driven.LLMService {
	switch cfg.GetString("llm.provider") {
	case "anthropic":
		apiKey := cfg.GetString("llm.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		svc, err := anthropic.NewLLMService(anthropic.Config{
			APIKey: apiKey,
			Model:  cfg.GetString("llm.model"),
		})
		if err != nil {
			logger.Warn("anthropic unavailable: %v", err)
			return nil
		}
		return svc
	case "ollama":
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: cfg.GetString("llm.base_url"),
			Model:   cfg.GetString("llm.model"),
		})
	default:
		return nil
	}
}

// buildNotifier returns nil when no webhook is configured.
func buildNotifier(cfg driven.ConfigStore) driven.Notifier {
	url := cfg.GetString("notify.webhook_url")
	if url == "" {
		return nil
	}
	n, err := webhook.NewNotifier(webhook.Config{URL: url})
	if err != nil {
		logger.Warn("notifier unavailable: %v", err)
		return nil
	}
	return n
}

// schedulerConfig overlays configured quiet hours and cadence flags on
// the defaults.
func schedulerConfig(cfg driven.ConfigStore) domain.SchedulerConfig {
	out := domain.DefaultSchedulerConfig()
	if _, ok := cfg.Get("scheduler.enabled"); ok {
		out.Enabled = cfg.GetBool("scheduler.enabled")
	}
	if _, ok := cfg.Get("scheduler.quiet_start"); ok {
		out.Quiet.StartHour = cfg.GetInt("scheduler.quiet_start")
	}
	if _, ok := cfg.Get("scheduler.quiet_end"); ok {
		out.Quiet.EndHour = cfg.GetInt("scheduler.quiet_end")
	}
	return out
}
