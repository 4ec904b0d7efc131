package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// defaultTickInterval is how often the scheduler checks for due agents.
const defaultTickInterval = time.Minute

// runLedgerKeep is how many runs per agent the ledger retains.
const runLedgerKeep = 50

// Scheduler runs registered agents on their tier cadence. Cadence is
// enforced through the persisted schedule, so restarts never cause
// double runs. Quiet hours gate only the notification boundary; agent
// runs and store writes proceed around the clock.
type Scheduler struct {
	schedules driven.ScheduleStore
	cfg       domain.SchedulerConfig
	tick      time.Duration
	now       func() time.Time

	mu     sync.Mutex
	agents map[string]driving.Agent

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

var _ driving.SchedulerService = (*Scheduler)(nil)

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval overrides the due-check interval. Test hook.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates the scheduling loop.
func NewScheduler(schedules driven.ScheduleStore, cfg domain.SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		schedules: schedules,
		cfg:       cfg,
		tick:      defaultTickInterval,
		now:       time.Now,
		agents:    make(map[string]driving.Agent),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an agent class to the schedule.
func (s *Scheduler) Register(agent driving.Agent) {
	s.mu.Lock()
	s.agents[agent.Name()] = agent
	s.mu.Unlock()
}

// Start runs the scheduling loop until ctx is cancelled or Stop is
// called. Blocks. Registered agents are written into the persisted
// schedule on startup so RunNow and status listing see them.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		logger.Info("scheduler disabled by configuration")
		return nil
	}

	if err := s.syncSchedules(ctx); err != nil {
		return err
	}

	logger.Section("Scheduler")
	logger.Info("scheduler started with %d agent(s)", len(s.agents))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runDue(ctx)
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stopped:
			s.wg.Wait()
			return nil
		}
	}
}

// Stop shuts the loop down and waits for in-flight runs.
func (s *Scheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopped) })
	s.wg.Wait()
	return nil
}

// RunNow executes a registered agent immediately, outside cadence.
func (s *Scheduler) RunNow(ctx context.Context, agent string) (*domain.AgentRun, error) {
	s.mu.Lock()
	a, ok := s.agents[agent]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("agent %q: %w", agent, domain.ErrNotFound)
	}
	return s.execute(ctx, a), nil
}

// syncSchedules seeds or refreshes the persisted schedule for every
// registered agent. Cadence overrides from configuration win over
// previously stored values; last/next run times are preserved.
func (s *Scheduler) syncSchedules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for name, agent := range s.agents {
		sched, err := s.schedules.GetSchedule(ctx, name)
		if err != nil {
			return fmt.Errorf("loading schedule for %s: %w", name, err)
		}
		if sched == nil {
			sched = &domain.AgentSchedule{
				Agent:   name,
				Tier:    agent.Tier(),
				Enabled: true,
				NextRun: now,
			}
		}
		sched.Tier = agent.Tier()
		if override, ok := s.cfg.Cadences[name]; ok {
			sched.Cadence = override
		}
		if err := s.schedules.SaveSchedule(ctx, sched); err != nil {
			return fmt.Errorf("saving schedule for %s: %w", name, err)
		}
	}
	return nil
}

// runDue launches every agent whose next-run time has arrived. The
// schedule row is advanced before the run starts, which claims the
// slot and prevents a slow run from being launched twice.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now().UTC()

	scheds, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		logger.Warn("listing schedules: %v", err)
		return
	}

	for i := range scheds {
		sched := scheds[i]
		if !sched.Enabled || sched.NextRun.After(now) {
			continue
		}

		s.mu.Lock()
		agent, ok := s.agents[sched.Agent]
		s.mu.Unlock()
		if !ok {
			continue
		}

		sched.NextRun = now.Add(sched.EffectiveCadence())
		if err := s.schedules.SaveSchedule(ctx, &sched); err != nil {
			logger.Warn("claiming schedule slot for %s: %v", sched.Agent, err)
			continue
		}

		s.wg.Add(1)
		go func(a driving.Agent) {
			defer s.wg.Done()
			s.execute(ctx, a)
		}(agent)
	}
}

// execute runs one agent pass and records the outcome in the schedule
// and the run ledger. Agent failures are recorded, never fatal to the
// loop.
func (s *Scheduler) execute(ctx context.Context, agent driving.Agent) *domain.AgentRun {
	name := agent.Name()
	started := s.now().UTC()
	logger.Debug("running agent %s", name)

	summary, runErr := agent.Run(ctx)
	ended := s.now().UTC()

	run := &domain.AgentRun{
		Agent:     name,
		StartedAt: started,
		EndedAt:   ended,
		Success:   runErr == nil,
		Summary:   summary,
	}
	if runErr != nil {
		run.Error = runErr.Error()
		logger.Warn("agent %s failed: %v", name, runErr)
	}

	if err := s.schedules.RecordRun(ctx, run); err != nil {
		logger.Warn("recording run for %s: %v", name, err)
	}
	if err := s.schedules.PruneRuns(ctx, runLedgerKeep); err != nil {
		logger.Warn("pruning run ledger: %v", err)
	}

	if sched, err := s.schedules.GetSchedule(ctx, name); err == nil && sched != nil {
		sched.LastRun = started
		sched.NextRun = ended.Add(sched.EffectiveCadence())
		sched.LastError = run.Error
		if err := s.schedules.SaveSchedule(ctx, sched); err != nil {
			logger.Warn("updating schedule for %s: %v", name, err)
		}
	}

	return run
}

// QuietHoursNotifier wraps a notifier with the quiet-hours policy.
// Suppression applies only here, at the notification boundary; nothing
// upstream of the notifier is ever gated.
type QuietHoursNotifier struct {
	inner driven.Notifier
	quiet domain.QuietHours
	now   func() time.Time
}

var _ driven.Notifier = (*QuietHoursNotifier)(nil)

// NewQuietHoursNotifier wraps inner with the quiet window. now may be
// nil, defaulting to time.Now.
func NewQuietHoursNotifier(inner driven.Notifier, quiet domain.QuietHours, now func() time.Time) *QuietHoursNotifier {
	if now == nil {
		now = time.Now
	}
	return &QuietHoursNotifier{inner: inner, quiet: quiet, now: now}
}

// Notify forwards the notification unless local time falls inside the
// quiet window. Suppressed notifications are dropped, not queued.
func (q *QuietHoursNotifier) Notify(ctx context.Context, n driven.Notification) error {
	if q.quiet.Contains(q.now()) {
		logger.Debug("quiet hours: suppressing notification from %s", n.Agent)
		return nil
	}
	return q.inner.Notify(ctx, n)
}
