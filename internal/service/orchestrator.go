package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/source"
)

// ErrAdapterNotFound is reported in the result of a run for an unregistered name.
var ErrAdapterNotFound = errors.New("adapter not found")

// Store is the idempotent persistence the orchestrator writes to.
type Store interface {
	Upsert(ctx context.Context, rec *domain.NormalizedRecord) (inserted bool, err error)
}

// Observer receives every finished run, e.g. for metrics.
type Observer interface {
	Observe(r domain.RunResult)
}

// PayloadArchive stores raw payloads. Failures never fail a run.
type PayloadArchive interface {
	Store(ctx context.Context, runID string, raw *source.RawPayload) ([]string, error)
}

type registration struct {
	domain.AdapterRegistration
	adapter source.Adapter
	// mu keeps two callers from running the same adapter at once.
	mu sync.Mutex
}

// Orchestrator owns the registered adapters and drives them through
// fetch, normalize and store.
type Orchestrator struct {
	store    Store
	observer Observer
	archive  PayloadArchive
	now      func() time.Time
	newRunID func() string

	mu       sync.RWMutex
	order    []string
	adapters map[string]*registration
	last     map[string]domain.RunResult
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithObserver reports every finished run to obs.
func WithObserver(obs Observer) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithArchive stores every fetched payload in a.
func WithArchive(a PayloadArchive) OrchestratorOption {
	return func(o *Orchestrator) { o.archive = a }
}

// WithClock sets the clock used for validation and durations.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator writing to store.
func NewOrchestrator(store Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
		adapters: make(map[string]*registration),
		last:     make(map[string]domain.RunResult),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds an adapter. An empty reg.Name uses the adapter's SourceID.
// Registration order is the order RunAll uses.
func (o *Orchestrator) Register(a source.Adapter, reg domain.AdapterRegistration) error {
	if reg.Name == "" {
		reg.Name = a.SourceID()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.adapters[reg.Name]; exists {
		return fmt.Errorf("adapter %q already registered", reg.Name)
	}
	o.adapters[reg.Name] = &registration{AdapterRegistration: reg, adapter: a}
	o.order = append(o.order, reg.Name)
	return nil
}

// Registrations returns the registered adapters in registration order.
func (o *Orchestrator) Registrations() []domain.AdapterRegistration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	regs := make([]domain.AdapterRegistration, 0, len(o.order))
	for _, name := range o.order {
		regs = append(regs, o.adapters[name].AdapterRegistration)
	}
	return regs
}

// LastResults returns the most recent result per adapter.
func (o *Orchestrator) LastResults() map[string]domain.RunResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]domain.RunResult, len(o.last))
	for k, v := range o.last {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) lookup(name string) (*registration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	reg, ok := o.adapters[name]
	return reg, ok
}

// RunAll runs every registered adapter sequentially in registration order.
func (o *Orchestrator) RunAll(ctx context.Context) *domain.RunSummary {
	o.mu.RLock()
	order := append([]string(nil), o.order...)
	o.mu.RUnlock()

	summary := domain.NewRunSummary()
	for _, name := range order {
		summary.Add(name, o.RunAdapter(ctx, name))
	}

	logger.With(logger.Fields{
		logger.FieldCount:  len(order),
		logger.FieldStatus: statusOf(summary.Success),
	}).Info(ctx, "Run summary completed")
	return summary
}

// RunAdapter runs one adapter to completion. It never returns an error: every
// failure, including an unknown name, is reported in the result.
func (o *Orchestrator) RunAdapter(ctx context.Context, name string) domain.RunResult {
	reg, ok := o.lookup(name)
	if !ok {
		res := domain.RunResult{
			SourceID:  name,
			Phase:     domain.RunPhaseFailed,
			StartedAt: o.now(),
		}
		res.AddError(fmt.Sprintf("%v: %s", ErrAdapterNotFound, name))
		logger.CtxWarn(ctx, "Adapter %q is not registered", name)
		return res
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	runID := o.newRunID()
	ctx = logger.SetRunID(ctx, runID)
	ctx = logger.SetSource(ctx, name)
	ctx = logger.SetComponent(ctx, "orchestrator")

	res := o.run(ctx, reg, runID)

	logger.With(logger.Fields{
		"records_found":     res.RecordsFound,
		"records_added":     res.RecordsAdded,
		"records_duplicate": res.Duplicates,
		"records_rejected":  res.RecordsRejected,
		"errors":            len(res.Errors),
	}).WithDuration(int64(res.DurationSeconds*1000)).WithStatus(string(res.Phase)).Info(ctx, "Adapter run finished")

	if o.observer != nil {
		o.observer.Observe(res)
	}
	o.mu.Lock()
	o.last[name] = res
	o.mu.Unlock()
	return res
}

func (o *Orchestrator) run(ctx context.Context, reg *registration, runID string) (res domain.RunResult) {
	start := o.now()
	res = domain.RunResult{
		RunID:     runID,
		SourceID:  reg.Name,
		Phase:     domain.RunPhasePending,
		StartedAt: start,
	}
	defer func() {
		if r := recover(); r != nil {
			res.AddError(fmt.Sprintf("panic in %s phase: %v", res.Phase, r))
			o.transition(ctx, &res, domain.RunPhaseFailed)
		}
		res.Success = res.Phase == domain.RunPhaseSucceeded
		res.DurationSeconds = o.now().Sub(start).Seconds()
	}()

	o.transition(ctx, &res, domain.RunPhaseFetching)
	raw, err := reg.adapter.FetchRaw(ctx)
	if err != nil {
		res.AddError(fmt.Sprintf("fetch: %v", err))
		o.transition(ctx, &res, domain.RunPhaseFailed)
		return res
	}
	o.archiveRaw(ctx, runID, raw)

	o.transition(ctx, &res, domain.RunPhaseNormalizing)
	records, err := reg.adapter.Normalize(ctx, raw)
	if err != nil {
		res.AddError(fmt.Sprintf("normalize: %v", err))
		o.transition(ctx, &res, domain.RunPhaseFailed)
		return res
	}
	res.RecordsFound = len(records)

	o.transition(ctx, &res, domain.RunPhaseStoring)
	storeFailed := false
	for i := range records {
		if err := ctx.Err(); err != nil {
			res.AddError(fmt.Sprintf("store: run cancelled after %d of %d records: %v", i, len(records), err))
			storeFailed = true
			break
		}

		rec := &records[i]
		if rec.SourceID == "" {
			rec.SourceID = reg.Name
		}
		if err := domain.NormalizeAndValidate(rec, o.now()); err != nil {
			logger.With(logger.Fields{
				logger.FieldRow:    i,
				logger.FieldReason: err.Error(),
			}).Info(ctx, "Skipped invalid record")
			res.RecordsRejected++
			continue
		}

		inserted, err := o.store.Upsert(ctx, rec)
		if err != nil {
			res.AddError(fmt.Sprintf("store %s (%s): %v", rec.EntityName, rec.EventDate.Format("2006-01-02"), err))
			storeFailed = true
			continue
		}
		if inserted {
			res.RecordsAdded++
		} else {
			res.Duplicates++
		}
	}

	if storeFailed {
		o.transition(ctx, &res, domain.RunPhaseFailed)
	} else {
		o.transition(ctx, &res, domain.RunPhaseSucceeded)
	}
	return res
}

func (o *Orchestrator) transition(ctx context.Context, res *domain.RunResult, next domain.RunPhase) {
	from := res.Phase
	res.Phase = next
	logger.With(logger.Fields{
		logger.FieldPhase: string(next),
		"from":            string(from),
	}).Info(ctx, "Run phase changed")
}

func (o *Orchestrator) archiveRaw(ctx context.Context, runID string, raw *source.RawPayload) {
	if o.archive == nil || raw == nil {
		return
	}
	if _, err := o.archive.Store(ctx, runID, raw); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to archive raw payload")
	}
}

func statusOf(ok bool) string {
	if ok {
		return "success"
	}
	return "failed"
}
