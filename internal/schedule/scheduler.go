// Package schedule runs batches on recurring cron schedules. One batch
// runs at a time per entry; processing inside a batch stays strictly
// sequential.
package schedule

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc executes one scheduled batch from its feature list file
type RunFunc func(ctx context.Context, entry Entry) error

// Scheduler triggers scheduled batch runs
type Scheduler struct {
	entries map[string]Entry
	parser  cron.Parser
	lastRun map[string]time.Time
	running map[string]bool
	mu      sync.RWMutex
}

// NewScheduler creates a scheduler over the given entries
func NewScheduler(entries []Entry) (*Scheduler, error) {
	s := &Scheduler{
		entries: make(map[string]Entry),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun: make(map[string]time.Time),
		running: make(map[string]bool),
	}

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		s.entries[e.Name] = e
	}

	return s, nil
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled run time for an entry
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	sched, err := s.parser.Parse(entry.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// ShouldRun reports whether an entry is due and not already running
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok || s.running[name] {
		return false
	}

	sched, err := s.parser.Parse(entry.Cron)
	if err != nil {
		return false
	}

	lastRun := s.lastRun[name]
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}
	return time.Now().After(sched.Next(lastRun))
}

// Entries returns all schedule entry names
func (s *Scheduler) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) markRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

func (s *Scheduler) markComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// Start ticks once a minute and launches due entries until the context
// is cancelled
func (s *Scheduler) Start(ctx context.Context, run RunFunc) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, entry := range s.snapshot() {
				if !s.ShouldRun(name) {
					continue
				}
				s.markRunning(name)
				go func(e Entry) {
					if err := run(ctx, e); err != nil {
						fmt.Fprintf(os.Stderr, "scheduled batch %s failed: %v\n", e.Name, err)
					}
					s.markComplete(e.Name)
				}(entry)
			}
		}
	}
}

func (s *Scheduler) snapshot() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
