package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pipekit/pkg/retry"
)

// StageStatus is the per-stage state recorded in a run result.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StageResult records how one stage ended: its terminal status, the number of
// attempts actually used, the failure (if any) and the cleanup error, which
// never overrides the primary outcome.
type StageResult struct {
	Status     StageStatus
	Attempts   int
	Err        error
	CleanupErr error
	Duration   time.Duration
}

// StageFailure is the structured detail a caller needs to forward an
// exhausted stage into a dead letter queue. Payload carries the run inputs
// and metadata required to retry the operation.
type StageFailure struct {
	Stage    string
	Op       string
	Kind     ErrorKind
	Message  string
	Attempts int
	Payload  json.RawMessage
}

// RunResult aggregates a finished run: the merged final Context, a result per
// stage (stages never started remain pending) and the overall status.
type RunResult struct {
	RunID   string
	Status  RunStatus
	Context Context
	Stages  map[string]StageResult
}

// Failures returns the structured failure reports for every stage that
// exhausted its budget or failed validation. The orchestrator never writes to
// a dead letter queue itself; callers enqueue these if they choose to.
func (r *RunResult) Failures() []StageFailure {
	names := make([]string, 0, len(r.Stages))
	for name := range r.Stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []StageFailure
	for _, name := range names {
		sr := r.Stages[name]
		if sr.Status != StageFailed || sr.Err == nil {
			continue
		}

		op := "execute"
		var se *StageError
		if errors.As(sr.Err, &se) {
			op = se.Op
		}

		payload, _ := json.Marshal(map[string]any{
			"run_id":   r.RunID,
			"stage":    name,
			"inputs":   r.Context.Inputs(),
			"metadata": r.Context.MetadataMap(),
		})

		failures = append(failures, StageFailure{
			Stage:    name,
			Op:       op,
			Kind:     KindOf(sr.Err),
			Message:  sr.Err.Error(),
			Attempts: sr.Attempts,
			Payload:  payload,
		})
	}

	return failures
}

// Orchestrator runs stage definition sets. It is stateless across runs and
// safe for concurrent use.
type Orchestrator struct {
	logger         *slog.Logger
	maxConcurrency int
	defaultRetry   retry.Policy
	defaultTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxConcurrency bounds how many mutually independent stages run at once.
// The default of 1 executes the whole graph sequentially.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithDefaultRetry sets the policy for stages whose definition carries none.
func WithDefaultRetry(policy retry.Policy) Option {
	return func(o *Orchestrator) { o.defaultRetry = policy }
}

// WithDefaultTimeout sets the per-attempt timeout for stages whose definition
// carries none.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.defaultTimeout = timeout
		}
	}
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:         slog.Default(),
		maxConcurrency: 1,
		defaultRetry:   retry.NoRetry(),
		sleep:          sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the definition set against the initial Context.
//
// Structural problems (empty set, duplicate names, unknown dependencies,
// cycles) return a nil result and an error before any stage body runs. Stage
// failures return a non-nil result whose Status is RunFailed together with
// the first failing stage's error, so callers can inspect both.
func (o *Orchestrator) Run(ctx context.Context, defs []Definition, initial Context) (*RunResult, error) {
	g, err := buildGraph(defs)
	if err != nil {
		return nil, err
	}
	if cycleErr := g.detectCycle(); cycleErr != nil {
		return nil, cycleErr
	}

	result := &RunResult{
		RunID:  uuid.NewString(),
		Status: RunRunning,
		Stages: make(map[string]StageResult, len(g.names)),
	}
	for _, name := range g.names {
		result.Stages[name] = StageResult{Status: StagePending}
	}

	logger := o.logger.With(slog.String("run_id", result.RunID))
	logger.InfoContext(ctx, "pipeline run started", slog.Int("stages", len(g.names)))

	cur := initial
	var runErr error

	for _, level := range g.levels() {
		// Cancellation is cooperative: checked at stage boundaries only.
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("pipeline run canceled: %w", err)
			break
		}

		for _, name := range level {
			result.Stages[name] = StageResult{Status: StageRunning}
		}
		outcomes := o.runLevel(ctx, g, level, cur, logger)

		// Merge completed outputs in name order so the final Context is
		// deterministic regardless of goroutine interleaving.
		for _, name := range level {
			oc := outcomes[name]
			result.Stages[name] = oc.result
			if oc.result.Status == StageCompleted {
				cur = cur.mergeOutputs(oc.context)
			}
		}

		for _, name := range level {
			if sr := result.Stages[name]; sr.Status == StageFailed && runErr == nil {
				runErr = sr.Err
			}
		}
		if runErr != nil {
			break
		}
	}

	result.Context = cur
	if runErr != nil {
		result.Status = RunFailed
		logger.ErrorContext(ctx, "pipeline run failed", slog.String("error", runErr.Error()))
		return result, runErr
	}

	result.Status = RunCompleted
	logger.InfoContext(ctx, "pipeline run completed")
	return result, nil
}

type stageOutcome struct {
	result  StageResult
	context Context
}

// runLevel dispatches every stage of one dependency barrier, bounded by the
// concurrency limit. All stages of the level observe the same snapshot
// Context; nothing is merged until the barrier completes.
func (o *Orchestrator) runLevel(ctx context.Context, g *graph, level []string, snapshot Context, logger *slog.Logger) map[string]stageOutcome {
	outcomes := make(map[string]stageOutcome, len(level))

	if o.maxConcurrency <= 1 || len(level) == 1 {
		for _, name := range level {
			outcomes[name] = o.runStage(ctx, g.defs[name], snapshot, logger)
		}
		return outcomes
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.maxConcurrency)
	)
	for _, name := range level {
		wg.Add(1)
		sem <- struct{}{}
		go func(name string) {
			defer wg.Done()
			defer func() { <-sem }()

			oc := o.runStage(ctx, g.defs[name], snapshot, logger)

			mu.Lock()
			outcomes[name] = oc
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return outcomes
}

// runStage drives one stage through validate → retry loop → cleanup. Cleanup
// runs exactly once on every path and its error never overrides the primary
// outcome. The return value is named so the deferred cleanup block can record
// its error and the duration on the result the caller actually receives.
func (o *Orchestrator) runStage(ctx context.Context, def Definition, snapshot Context, logger *slog.Logger) (oc stageOutcome) {
	policy := o.defaultRetry
	if def.Retry != nil {
		policy = *def.Retry
	}
	timeout := o.defaultTimeout
	if def.Timeout > 0 {
		timeout = def.Timeout
	}

	start := time.Now()
	logger.InfoContext(ctx, "stage started",
		slog.String("stage", def.Name),
		slog.Int("max_attempts", policy.MaxAttempts))

	last := snapshot
	oc.context = snapshot

	defer func() {
		if cerr := def.Stage.Cleanup(ctx, last); cerr != nil {
			oc.result.CleanupErr = NewStageError(ErrorKindCleanup, def.Name, "cleanup", cerr)
			logger.WarnContext(ctx, "stage cleanup failed",
				slog.String("stage", def.Name),
				slog.String("error", cerr.Error()))
		}
		oc.result.Duration = time.Since(start)
	}()

	if err := def.Stage.Validate(ctx, snapshot); err != nil {
		oc.result = StageResult{
			Status: StageFailed,
			Err:    NewStageError(ErrorKindValidation, def.Name, "validate", err),
		}
		logger.ErrorContext(ctx, "stage validation failed",
			slog.String("stage", def.Name),
			slog.String("error", err.Error()))
		return oc
	}

	for attempt := 1; ; attempt++ {
		out, err := o.executeOnce(ctx, def, snapshot, timeout)
		if err == nil {
			last = out
			oc.context = out
			oc.result = StageResult{Status: StageCompleted, Attempts: attempt}
			logger.InfoContext(ctx, "stage completed",
				slog.String("stage", def.Name),
				slog.Int("attempts", attempt))
			return oc
		}

		if !policy.ShouldRetry(attempt, err) {
			oc.result = StageResult{Status: StageFailed, Attempts: attempt, Err: wrapStageErr(def.Name, err)}
			logger.ErrorContext(ctx, "stage exhausted retry budget",
				slog.String("stage", def.Name),
				slog.Int("attempts", attempt),
				slog.String("error_kind", string(KindOf(err))),
				slog.String("error", err.Error()))
			return oc
		}

		delay := policy.Delay(attempt)
		logger.WarnContext(ctx, "stage attempt failed, retrying",
			slog.String("stage", def.Name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		// The wait suspends only this stage's execution path; cancellation
		// during the wait ends the stage at the current attempt count.
		if err := o.sleep(ctx, delay); err != nil {
			oc.result = StageResult{
				Status:   StageFailed,
				Attempts: attempt,
				Err:      NewStageError(ErrorKindExecution, def.Name, "retry_wait", err),
			}
			return oc
		}
	}
}

// executeOnce runs a single attempt: execute, then the postcondition check,
// which counts against the retry budget exactly like an execution failure.
func (o *Orchestrator) executeOnce(ctx context.Context, def Definition, snapshot Context, timeout time.Duration) (Context, error) {
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := def.Stage.Execute(execCtx, snapshot)
	if err != nil {
		return snapshot, err
	}

	if err := def.Stage.ValidateOutputs(ctx, out); err != nil {
		return snapshot, NewStageError(ErrorKindValidation, def.Name, "validate_outputs", err)
	}

	return out, nil
}

// wrapStageErr ensures the recorded failure is a typed StageError while
// keeping already-classified errors (lock contention, output validation)
// intact.
func wrapStageErr(stage string, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return NewStageError(KindOf(err), stage, "execute", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
