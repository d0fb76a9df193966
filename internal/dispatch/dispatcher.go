package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/llm"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

// State is the lifecycle of the single batch slot.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Outcome summarizes a finished run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

var (
	// ErrBatchRunning rejects a second Start while a run is in flight or
	// a finished run has not been acknowledged.
	ErrBatchRunning = errors.New("dispatch: batch already running")
	// ErrNotCompleted rejects Acknowledge outside the completed state.
	ErrNotCompleted = errors.New("dispatch: no completed batch to acknowledge")
	// ErrNothingPending means every catalog query already has a platform
	// A response.
	ErrNothingPending = errors.New("dispatch: no pending queries")
)

// ItemError records one failed query within a run.
type ItemError struct {
	QueryID int    `json:"query_id"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Status is a point-in-time snapshot of the batch slot.
type Status struct {
	State         State       `json:"state"`
	Outcome       Outcome     `json:"outcome,omitempty"`
	Total         int         `json:"total"`
	Processed     int         `json:"processed"`
	CurrentQuery  int         `json:"current_query,omitempty"`
	Succeeded     int         `json:"succeeded"`
	Failed        int         `json:"failed"`
	Errors        []ItemError `json:"errors,omitempty"`
	ErrorOverflow int         `json:"error_overflow,omitempty"`
	Message       string      `json:"message,omitempty"`
	StartedAt     time.Time   `json:"started_at,omitempty"`
	FinishedAt    time.Time   `json:"finished_at,omitempty"`
}

// Dispatcher fills missing platform A responses in rate-limited batches.
// One run at a time; a finished run holds the slot until acknowledged.
type Dispatcher struct {
	store    store.Store
	cat      *catalog.Catalog
	provider llm.Provider
	cfg      config.BatchConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	status Status
	done   chan struct{}
}

func New(st store.Store, cat *catalog.Catalog, provider llm.Provider, cfg config.BatchConfig) (*Dispatcher, error) {
	if st == nil {
		return nil, errors.New("dispatch: nil store")
	}
	if cat == nil {
		return nil, errors.New("dispatch: nil catalog")
	}
	if provider == nil {
		return nil, errors.New("dispatch: nil provider")
	}
	if cfg.Size <= 0 {
		cfg.Size = config.DefaultBatchSize
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = config.DefaultRetryDelay
	}
	if cfg.ErrorCap <= 0 {
		cfg.ErrorCap = config.DefaultErrorCap
	}

	return &Dispatcher{
		store:    st,
		cat:      cat,
		provider: provider,
		cfg:      cfg,
		sleep:    sleepWithContext,
		status:   Status{State: StateIdle},
	}, nil
}

// Pending returns catalog queries with no platform A response yet, in
// catalog order.
func (d *Dispatcher) Pending(ctx context.Context) ([]catalog.Query, error) {
	if d == nil {
		return nil, errors.New("dispatch: nil dispatcher")
	}
	if ctx == nil {
		return nil, errors.New("dispatch: nil context")
	}

	records, err := d.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list records: %w", err)
	}

	answered := make(map[int]bool, len(records))
	for _, rec := range records {
		if rec.ResponseA != nil {
			answered[rec.QueryID] = true
		}
	}

	var out []catalog.Query
	for _, q := range d.cat.All() {
		if !answered[q.ID] {
			out = append(out, q)
		}
	}
	return out, nil
}

// Estimate reports how the next run would look without starting it.
func (d *Dispatcher) Estimate(ctx context.Context) (pending int, batch int, err error) {
	queries, err := d.Pending(ctx)
	if err != nil {
		return 0, 0, err
	}
	batch = len(queries)
	if batch > d.cfg.Size {
		batch = d.cfg.Size
	}
	return len(queries), batch, nil
}

// Start claims the batch slot and launches the run. It returns once the
// slot is claimed; progress is observed through Status.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatch: nil dispatcher")
	}
	if ctx == nil {
		return errors.New("dispatch: nil context")
	}

	queries, err := d.Pending(ctx)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return ErrNothingPending
	}
	if len(queries) > d.cfg.Size {
		queries = queries[:d.cfg.Size]
	}

	d.mu.Lock()
	if d.status.State != StateIdle {
		d.mu.Unlock()
		return ErrBatchRunning
	}
	d.status = Status{
		State:     StateRunning,
		Total:     len(queries),
		StartedAt: time.Now().UTC(),
	}
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		d.run(ctx, queries)
	}()
	return nil
}

func (d *Dispatcher) run(ctx context.Context, queries []catalog.Query) {
	log.Printf("dispatch: batch started (%d queries)", len(queries))

	var aborted bool
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			d.recordFailure(q.ID, err, true)
			aborted = true
			break
		}

		d.setCurrent(q.ID)
		res, err := d.completeWithRetry(ctx, q.Text)
		if err != nil {
			fatal := llm.ClassifyError(err) == llm.FailureFatal
			d.recordFailure(q.ID, err, fatal)
			// Fatal on the first item aborts the whole run.
			if fatal && i == 0 {
				aborted = true
				break
			}
			d.advance()
			continue
		}

		resp := &store.Response{
			Text:             res.Text,
			Model:            res.Model,
			SearchUsed:       res.SearchUsed,
			CitationCount:    res.CitationCount,
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
			LatencyMs:        res.LatencyMs,
			FinishReason:     res.FinishReason,
		}
		if err := d.store.PutResponse(ctx, q.ID, store.PlatformA, resp); err != nil {
			d.recordFailure(q.ID, fmt.Errorf("store response: %w", err), true)
			aborted = true
			break
		}

		d.recordSuccess()

		if i < len(queries)-1 && d.cfg.RateLimitDelay > 0 {
			if err := d.sleep(ctx, d.cfg.RateLimitDelay); err != nil {
				aborted = true
				break
			}
		}
	}

	d.finish(aborted)
}

func (d *Dispatcher) completeWithRetry(ctx context.Context, query string) (*llm.Result, error) {
	req := &llm.Request{
		Query:        query,
		Temperature:  d.cfg.Temperature,
		MaxTokens:    d.cfg.MaxTokens,
		EnableSearch: d.cfg.EnableSearch,
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := d.provider.Complete(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if llm.ClassifyError(err) == llm.FailureFatal || attempt >= d.cfg.RetryAttempts {
			return nil, lastErr
		}
		if err := d.sleep(ctx, retryBackoff(d.cfg.RetryDelay, attempt)); err != nil {
			return nil, err
		}
	}
}

func (d *Dispatcher) setCurrent(queryID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.CurrentQuery = queryID
}

func (d *Dispatcher) recordSuccess() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Processed++
	d.status.Succeeded++
}

func (d *Dispatcher) advance() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status.Processed++
}

func (d *Dispatcher) recordFailure(queryID int, err error, fatal bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.Failed++
	if len(d.status.Errors) < d.cfg.ErrorCap {
		d.status.Errors = append(d.status.Errors, ItemError{
			QueryID: queryID,
			Message: err.Error(),
			Fatal:   fatal,
		})
	} else {
		d.status.ErrorOverflow++
	}
}

func (d *Dispatcher) finish(aborted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.State = StateCompleted
	d.status.CurrentQuery = 0
	d.status.FinishedAt = time.Now().UTC()

	switch {
	case aborted, d.status.Succeeded == 0:
		d.status.Outcome = OutcomeFailed
	case d.status.Failed > 0:
		d.status.Outcome = OutcomePartial
	default:
		d.status.Outcome = OutcomeSuccess
	}

	switch d.status.Outcome {
	case OutcomeSuccess:
		d.status.Message = fmt.Sprintf("batch completed: %d/%d queries answered", d.status.Succeeded, d.status.Total)
	case OutcomePartial:
		d.status.Message = fmt.Sprintf("batch completed with errors: %d answered, %d failed of %d", d.status.Succeeded, d.status.Failed, d.status.Total)
	default:
		d.status.Message = fmt.Sprintf("batch failed: %d answered, %d failed of %d", d.status.Succeeded, d.status.Failed, d.status.Total)
	}

	log.Printf("dispatch: %s", d.status.Message)
}

// Status returns a snapshot safe to hold after the lock is released.
func (d *Dispatcher) Status() Status {
	if d == nil {
		return Status{State: StateIdle}
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.status
	if len(d.status.Errors) > 0 {
		out.Errors = make([]ItemError, len(d.status.Errors))
		copy(out.Errors, d.status.Errors)
		sort.SliceStable(out.Errors, func(i, j int) bool {
			return out.Errors[i].QueryID < out.Errors[j].QueryID
		})
	}
	return out
}

// Acknowledge releases a completed run, returning the slot to idle.
func (d *Dispatcher) Acknowledge() (Status, error) {
	if d == nil {
		return Status{}, errors.New("dispatch: nil dispatcher")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status.State != StateCompleted {
		return Status{}, ErrNotCompleted
	}
	final := d.status
	d.status = Status{State: StateIdle}
	d.done = nil
	return final, nil
}

// Wait blocks until the in-flight run finishes or the context ends. Idle
// and completed slots return immediately.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatch: nil dispatcher")
	}
	if ctx == nil {
		return errors.New("dispatch: nil context")
	}

	d.mu.Lock()
	done := d.done
	state := d.status.State
	d.mu.Unlock()

	if done == nil || state != StateRunning {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
