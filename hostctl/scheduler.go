package hostctl

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Scheduler runs colour changes on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	sender Sender
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[cron.EntryID]ScheduleEntry
}

func NewScheduler(sender Sender, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		sender:  sender,
		logger:  logger,
		entries: make(map[cron.EntryID]ScheduleEntry),
	}
}

// Add registers one entry.
func (s *Scheduler) Add(e ScheduleEntry) (cron.EntryID, error) {
	act, err := parseAction(e.Action)
	if err != nil {
		return 0, errors.Wrapf(err, "schedule %q", e.Spec)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(e.Spec, func() { s.execute(e, act) })
	if err != nil {
		return 0, errors.Wrapf(err, "schedule %q", e.Spec)
	}
	s.entries[id] = e
	s.logger.Info("added schedule", "id", id, "spec", e.Spec, "action", e.Action)
	return id, nil
}

// Remove drops an entry.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(id)
	delete(s.entries, id)
}

// Entries returns a copy of the registered entries.
func (s *Scheduler) Entries() map[cron.EntryID]ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[cron.EntryID]ScheduleEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

func (s *Scheduler) execute(e ScheduleEntry, act action) {
	s.logger.Info("running schedule", "spec", e.Spec, "action", e.Action)
	if err := act.apply(context.Background(), s.sender); err != nil {
		s.logger.Error("scheduled command failed", "action", e.Action, "err", err)
	}
}

// Run starts the cron ticker and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}
