package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ScheduleEntry declares one periodic task: the logical name, a fixed period,
// and an optional queue override applied on top of the routed queue.
type ScheduleEntry struct {
	Name   string
	Period time.Duration
	Queue  string // optional override; empty means "use the routed queue"
}

// Scheduler fires periodic tasks on fixed intervals, submitting them through
// the same router path as on-demand work, so a periodic task is not a
// special code path downstream of submission. Missed ticks are not backfilled, and
// overlapping runs of the same entry are allowed; a task body needing mutual
// exclusion must enforce it itself.
type Scheduler struct {
	entries   []ScheduleEntry
	submitter Submitter
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler over the given static table. Every entry
// must have a name and a positive period.
func NewScheduler(entries []ScheduleEntry, submitter Submitter, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, e := range entries {
		if e.Name == "" || e.Period <= 0 {
			return nil, fmt.Errorf("invalid schedule entry %+v: name and positive period required", e)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		entries:   entries,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "scheduler")),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// EntryNames returns the task names in the schedule, for startup validation
// against the handler registry.
func (s *Scheduler) EntryNames() []string {
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.Name)
	}

	return names
}

// Start launches one ticker goroutine per entry.
func (s *Scheduler) Start() {
	for _, entry := range s.entries {
		s.wg.Add(1)
		go s.run(entry)
	}

	s.logger.Info("scheduler started", "entry_count", len(s.entries))
}

// Stop halts all tickers and waits for in-flight submissions to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// run fires one entry on its period until the scheduler stops. Tickers drop
// ticks when nobody is receiving, which gives the "no backfill" behavior for
// free.
func (s *Scheduler) run(entry ScheduleEntry) {
	defer s.wg.Done()

	ticker := time.NewTicker(entry.Period)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.fire(entry)
		}
	}
}

// fire synthesizes a fresh task (attempt zero, new id) for the entry and
// submits it.
func (s *Scheduler) fire(entry ScheduleEntry) {
	opts := []SubmitOption{}
	if entry.Queue != "" {
		opts = append(opts, WithQueue(entry.Queue))
	}

	id, err := s.submitter.Submit(s.ctx, entry.Name, nil, opts...)
	if err != nil {
		s.logger.Error("failed to submit periodic task",
			"task_name", entry.Name,
			"error", err)
		return
	}

	s.logger.Debug("periodic task submitted",
		"task_name", entry.Name,
		"task_id", id)
}
