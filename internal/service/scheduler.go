package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
)

// Runner is what the scheduler triggers. *Orchestrator implements it.
type Runner interface {
	RunAdapter(ctx context.Context, name string) domain.RunResult
	RunAll(ctx context.Context) *domain.RunSummary
}

// Job is a snapshot of one scheduled adapter.
type Job struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Next     time.Time     `json:"next"`
}

type job struct {
	name     string
	interval time.Duration
	next     time.Time
}

// Scheduler runs adapters on independent fixed intervals from one loop.
// Due jobs run one after another, so a slow run delays the others instead of
// overlapping them; ticks missed while a job was running are not replayed.
type Scheduler struct {
	runner Runner
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
	wake chan struct{}
}

// NewScheduler creates a scheduler driving runner.
func NewScheduler(runner Runner) *Scheduler {
	return &Scheduler{
		runner: runner,
		now:    time.Now,
		jobs:   make(map[string]*job),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule runs name every interval, first after one interval has elapsed.
// Scheduling a name again replaces its job.
func (s *Scheduler) Schedule(name string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval for %s must be positive, got %v", name, interval)
	}

	s.mu.Lock()
	s.jobs[name] = &job{name: name, interval: interval, next: s.now().Add(interval)}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Unschedule removes the job for name and reports whether one existed.
func (s *Scheduler) Unschedule(name string) bool {
	s.mu.Lock()
	_, ok := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// Jobs returns the scheduled jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, Job{Name: j.name, Interval: j.interval, Next: j.next})
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	return jobs
}

// RunOnce runs every adapter once, outside the loop.
func (s *Scheduler) RunOnce(ctx context.Context) *domain.RunSummary {
	return s.runner.RunAll(ctx)
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start blocks running due jobs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx = logger.SetComponent(ctx, "scheduler")
	logger.With(logger.Fields{logger.FieldCount: len(s.Jobs())}).Info(ctx, "Scheduler started")

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := s.untilNext()
		if !ok {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			logger.CtxInfo(ctx, "Scheduler stopped")
			return nil
		case <-s.wake:
		case <-timer.C:
			s.runDue(ctx)
		}
	}
}

// untilNext returns the wait until the earliest job is due.
func (s *Scheduler) untilNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, j := range s.jobs {
		if earliest.IsZero() || j.next.Before(earliest) {
			earliest = j.next
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	if d := earliest.Sub(s.now()); d > 0 {
		return d, true
	}
	return 0, true
}

func (s *Scheduler) due() []*job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []*job
	for _, j := range s.jobs {
		if !j.next.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].next.Equal(due[k].next) {
			return due[i].name < due[k].name
		}
		return due[i].next.Before(due[k].next)
	})
	return due
}

func (s *Scheduler) runDue(ctx context.Context) {
	for _, j := range s.due() {
		if ctx.Err() != nil {
			return
		}
		res := s.runner.RunAdapter(ctx, j.name)
		if !res.Success {
			logger.With(logger.Fields{
				logger.FieldSource: j.name,
				"errors":           res.Errors,
			}).Warn(ctx, "Scheduled run failed, retrying next interval")
		}

		s.mu.Lock()
		// A job replaced or removed while running keeps its new schedule.
		if cur, ok := s.jobs[j.name]; ok && cur == j {
			j.next = s.now().Add(j.interval)
		}
		s.mu.Unlock()
	}
}
