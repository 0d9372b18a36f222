package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pipekit/pkg/pipeline"
	"github.com/dmitrymomot/pipekit/pkg/retry"
)

// orderRecorder tracks the order in which stages execute across goroutines.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *orderRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// recordingStage counts life cycle calls and can be told to fail.
type recordingStage struct {
	name        string
	recorder    *orderRecorder
	validateErr error
	outputsErr  error
	failFirst   int // fail this many execute calls before succeeding
	executeErr  error

	mu            sync.Mutex
	validateCalls int
	executeCalls  int
	outputsCalls  int
	cleanupCalls  int
}

func (s *recordingStage) Name() string { return s.name }

func (s *recordingStage) Validate(ctx context.Context, pctx pipeline.Context) error {
	s.mu.Lock()
	s.validateCalls++
	s.mu.Unlock()
	return s.validateErr
}

func (s *recordingStage) Execute(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
	s.mu.Lock()
	s.executeCalls++
	calls := s.executeCalls
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.record(s.name)
	}
	if s.executeErr != nil {
		return pctx, s.executeErr
	}
	if calls <= s.failFirst {
		return pctx, errors.New(s.name + " transient failure")
	}
	return pctx.WithOutput(s.name, calls), nil
}

func (s *recordingStage) ValidateOutputs(ctx context.Context, pctx pipeline.Context) error {
	s.mu.Lock()
	s.outputsCalls++
	s.mu.Unlock()
	return s.outputsErr
}

func (s *recordingStage) Cleanup(ctx context.Context, pctx pipeline.Context) error {
	s.mu.Lock()
	s.cleanupCalls++
	s.mu.Unlock()
	return nil
}

func (s *recordingStage) calls() (validate, execute, cleanup int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateCalls, s.executeCalls, s.cleanupCalls
}

func defsNamed(name string, stage pipeline.Stage) []pipeline.Definition {
	return []pipeline.Definition{{Name: name, Stage: stage}}
}

func defsOf(stages ...*recordingStage) []pipeline.Definition {
	defs := make([]pipeline.Definition, 0, len(stages))
	for _, s := range stages {
		defs = append(defs, pipeline.Definition{Name: s.name, Stage: s})
	}
	return defs
}

func TestOrchestrator_Run_ChainSuccess(t *testing.T) {
	t.Parallel()

	rec := &orderRecorder{}
	a := &recordingStage{name: "a", recorder: rec}
	b := &recordingStage{name: "b", recorder: rec}
	c := &recordingStage{name: "c", recorder: rec}

	defs := []pipeline.Definition{
		{Name: "a", Stage: a},
		{Name: "b", Stage: b, DependsOn: []string{"a"}},
		{Name: "c", Stage: c, DependsOn: []string{"b"}},
	}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, pipeline.RunCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, rec.names())

	for _, name := range []string{"a", "b", "c"} {
		sr := result.Stages[name]
		assert.Equal(t, pipeline.StageCompleted, sr.Status)
		assert.Equal(t, 1, sr.Attempts)
		_, ok := result.Context.Output(name)
		assert.True(t, ok, "merged context must contain output of %s", name)
	}
}

func TestOrchestrator_Run_DeclarationOrderIndependence(t *testing.T) {
	t.Parallel()

	rec := &orderRecorder{}
	a := &recordingStage{name: "a", recorder: rec}
	b := &recordingStage{name: "b", recorder: rec}
	c := &recordingStage{name: "c", recorder: rec}

	// Deliberately out of order: c first, then a, then b.
	defs := []pipeline.Definition{
		{Name: "c", Stage: c, DependsOn: []string{"b"}},
		{Name: "a", Stage: a},
		{Name: "b", Stage: b, DependsOn: []string{"a"}},
	}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, rec.names())
}

func TestOrchestrator_Run_TopologicalSoundness(t *testing.T) {
	t.Parallel()

	// Diamond: d depends on b and c, which both depend on a.
	rec := &orderRecorder{}
	a := &recordingStage{name: "a", recorder: rec}
	b := &recordingStage{name: "b", recorder: rec}
	c := &recordingStage{name: "c", recorder: rec}
	d := &recordingStage{name: "d", recorder: rec}

	defs := []pipeline.Definition{
		{Name: "d", Stage: d, DependsOn: []string{"b", "c"}},
		{Name: "b", Stage: b, DependsOn: []string{"a"}},
		{Name: "c", Stage: c, DependsOn: []string{"a"}},
		{Name: "a", Stage: a},
	}

	result, err := pipeline.New(pipeline.WithMaxConcurrency(4)).
		Run(context.Background(), defs, pipeline.NewContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunCompleted, result.Status)

	names := rec.names()
	require.Len(t, names, 4)
	assert.Less(t, indexOf(names, "a"), indexOf(names, "b"))
	assert.Less(t, indexOf(names, "a"), indexOf(names, "c"))
	assert.Less(t, indexOf(names, "b"), indexOf(names, "d"))
	assert.Less(t, indexOf(names, "c"), indexOf(names, "d"))
}

func TestOrchestrator_Run_CycleSafety(t *testing.T) {
	t.Parallel()

	t.Run("mutual dependency", func(t *testing.T) {
		t.Parallel()

		a := &recordingStage{name: "a"}
		b := &recordingStage{name: "b"}
		defs := []pipeline.Definition{
			{Name: "a", Stage: a, DependsOn: []string{"b"}},
			{Name: "b", Stage: b, DependsOn: []string{"a"}},
		}

		result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
		require.Error(t, err)
		assert.Nil(t, result)

		var cycleErr *pipeline.CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.NotEmpty(t, cycleErr.Cycle)

		for _, s := range []*recordingStage{a, b} {
			validate, execute, cleanup := s.calls()
			assert.Zero(t, validate, "%s validate must not run", s.name)
			assert.Zero(t, execute, "%s execute must not run", s.name)
			assert.Zero(t, cleanup, "%s cleanup must not run", s.name)
		}
	})

	t.Run("longer cycle behind a valid prefix", func(t *testing.T) {
		t.Parallel()

		a := &recordingStage{name: "a"}
		b := &recordingStage{name: "b"}
		c := &recordingStage{name: "c"}
		d := &recordingStage{name: "d"}
		defs := []pipeline.Definition{
			{Name: "a", Stage: a},
			{Name: "b", Stage: b, DependsOn: []string{"a", "d"}},
			{Name: "c", Stage: c, DependsOn: []string{"b"}},
			{Name: "d", Stage: d, DependsOn: []string{"c"}},
		}

		_, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
		var cycleErr *pipeline.CycleError
		require.ErrorAs(t, err, &cycleErr)

		_, execute, _ := a.calls()
		assert.Zero(t, execute, "no stage body may run when the graph has a cycle")
	})
}

func TestOrchestrator_Run_EventualSuccess(t *testing.T) {
	t.Parallel()

	policy := retry.Immediate(4)
	s := &recordingStage{name: "flaky", failFirst: 2}
	defs := []pipeline.Definition{{Name: "flaky", Stage: s, Retry: &policy}}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.NoError(t, err)

	assert.Equal(t, pipeline.RunCompleted, result.Status)
	sr := result.Stages["flaky"]
	assert.Equal(t, pipeline.StageCompleted, sr.Status)
	assert.Equal(t, 3, sr.Attempts)

	_, _, cleanup := s.calls()
	assert.Equal(t, 1, cleanup, "cleanup must run exactly once despite retries")
}

func TestOrchestrator_Run_CleanupFailureSurfaces(t *testing.T) {
	t.Parallel()

	t.Run("after success", func(t *testing.T) {
		t.Parallel()

		messy := &pipeline.FuncStage{
			StageName: "messy",
			ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
				return pctx.WithOutput("messy", true), nil
			},
			CleanupFunc: func(ctx context.Context, pctx pipeline.Context) error {
				return errors.New("scratch dir removal failed")
			},
		}

		result, err := pipeline.New().Run(context.Background(), defsNamed("messy", messy), pipeline.NewContext())
		require.NoError(t, err, "cleanup failure must not override a successful outcome")
		assert.Equal(t, pipeline.RunCompleted, result.Status)

		sr := result.Stages["messy"]
		assert.Equal(t, pipeline.StageCompleted, sr.Status)
		require.Error(t, sr.CleanupErr)
		assert.Equal(t, pipeline.ErrorKindCleanup, pipeline.KindOf(sr.CleanupErr))
		assert.Contains(t, sr.CleanupErr.Error(), "scratch dir removal failed")
		assert.Positive(t, sr.Duration)
	})

	t.Run("after failure", func(t *testing.T) {
		t.Parallel()

		broken := &pipeline.FuncStage{
			StageName: "broken",
			ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
				return pctx, errors.New("boom")
			},
			CleanupFunc: func(ctx context.Context, pctx pipeline.Context) error {
				return errors.New("lock release failed")
			},
		}

		result, err := pipeline.New().Run(context.Background(), defsNamed("broken", broken), pipeline.NewContext())
		require.Error(t, err)

		sr := result.Stages["broken"]
		assert.Equal(t, pipeline.StageFailed, sr.Status)
		assert.Equal(t, pipeline.ErrorKindExecution, pipeline.KindOf(sr.Err),
			"primary error keeps its own kind despite the cleanup failure")
		require.Error(t, sr.CleanupErr)
		assert.Equal(t, pipeline.ErrorKindCleanup, pipeline.KindOf(sr.CleanupErr))
		assert.Positive(t, sr.Duration)
	})
}

func TestOrchestrator_Run_StageDurationRecorded(t *testing.T) {
	t.Parallel()

	slowish := &pipeline.FuncStage{
		StageName: "slowish",
		ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
			time.Sleep(15 * time.Millisecond)
			return pctx, nil
		},
	}

	result, err := pipeline.New().Run(context.Background(), defsNamed("slowish", slowish), pipeline.NewContext())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Stages["slowish"].Duration, 15*time.Millisecond)
}

func TestOrchestrator_Run_RetryBudgetExhaustion(t *testing.T) {
	t.Parallel()

	policy := retry.Immediate(3)
	flaky := &recordingStage{name: "flaky", executeErr: errors.New("persistent failure")}
	after := &recordingStage{name: "after"}

	defs := []pipeline.Definition{
		{Name: "flaky", Stage: flaky, Retry: &policy},
		{Name: "after", Stage: after, DependsOn: []string{"flaky"}},
	}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, pipeline.RunFailed, result.Status)

	sr := result.Stages["flaky"]
	assert.Equal(t, pipeline.StageFailed, sr.Status)
	assert.Equal(t, 3, sr.Attempts)
	assert.Equal(t, pipeline.ErrorKindExecution, pipeline.KindOf(sr.Err))

	_, execute, cleanup := flaky.calls()
	assert.Equal(t, 3, execute)
	assert.Equal(t, 1, cleanup)

	// Dependent stage never starts once its dependency failed.
	assert.Equal(t, pipeline.StagePending, result.Stages["after"].Status)
	_, afterExec, _ := after.calls()
	assert.Zero(t, afterExec)
}

func TestOrchestrator_Run_ValidationFailureHaltsWithoutRetry(t *testing.T) {
	t.Parallel()

	policy := retry.Immediate(5)
	bad := &recordingStage{name: "bad", validateErr: errors.New("input file missing")}
	next := &recordingStage{name: "next"}

	defs := []pipeline.Definition{
		{Name: "bad", Stage: bad, Retry: &policy},
		{Name: "next", Stage: next, DependsOn: []string{"bad"}},
	}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.Error(t, err)
	require.NotNil(t, result)

	sr := result.Stages["bad"]
	assert.Equal(t, pipeline.StageFailed, sr.Status)
	assert.Equal(t, pipeline.ErrorKindValidation, pipeline.KindOf(sr.Err))

	validate, execute, cleanup := bad.calls()
	assert.Equal(t, 1, validate)
	assert.Zero(t, execute, "execute must not run after validation failure")
	assert.Equal(t, 1, cleanup, "cleanup still runs after validation failure")

	_, nextExec, _ := next.calls()
	assert.Zero(t, nextExec)
}

func TestOrchestrator_Run_OutputValidationCountsAgainstBudget(t *testing.T) {
	t.Parallel()

	policy := retry.Immediate(2)
	s := &recordingStage{name: "suspect", outputsErr: errors.New("output checksum mismatch")}
	defs := []pipeline.Definition{{Name: "suspect", Stage: s, Retry: &policy}}

	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.Error(t, err)

	sr := result.Stages["suspect"]
	assert.Equal(t, pipeline.StageFailed, sr.Status)
	assert.Equal(t, 2, sr.Attempts, "postcondition failures consume the retry budget")

	_, execute, _ := s.calls()
	assert.Equal(t, 2, execute)
}

func TestOrchestrator_Run_IndependentStagesInFailingLevel(t *testing.T) {
	t.Parallel()

	rec := &orderRecorder{}
	ok := &recordingStage{name: "ok", recorder: rec}
	broken := &recordingStage{name: "broken", recorder: rec, executeErr: errors.New("boom")}

	result, err := pipeline.New().Run(context.Background(), defsOf(broken, ok), pipeline.NewContext())
	require.Error(t, err)

	// Both stages share the first barrier, so both run; the failure only
	// stops later levels.
	assert.Equal(t, pipeline.StageCompleted, result.Stages["ok"].Status)
	assert.Equal(t, pipeline.StageFailed, result.Stages["broken"].Status)
	_, okOutput := result.Context.Output("ok")
	assert.True(t, okOutput, "completed work in the failing level is still merged")
}

func TestOrchestrator_Run_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("canceled before any stage", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := &recordingStage{name: "a"}
		result, err := pipeline.New().Run(ctx, defsOf(s), pipeline.NewContext())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, pipeline.RunFailed, result.Status)

		_, execute, _ := s.calls()
		assert.Zero(t, execute)
	})

	t.Run("canceled between retry attempts", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		policy := retry.ExponentialBackoff(5, time.Hour, time.Hour)
		s := &recordingStage{name: "a", executeErr: errors.New("boom")}

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		result, err := pipeline.New().Run(ctx, []pipeline.Definition{
			{Name: "a", Stage: s, Retry: &policy},
		}, pipeline.NewContext())
		require.Error(t, err)
		assert.Less(t, time.Since(start), time.Minute, "cancellation must cut the backoff wait short")

		sr := result.Stages["a"]
		assert.Equal(t, pipeline.StageFailed, sr.Status)
		assert.Equal(t, 1, sr.Attempts)

		_, _, cleanup := s.calls()
		assert.Equal(t, 1, cleanup, "cleanup runs for the stage in progress at cancellation")
	})
}

func TestOrchestrator_Run_StageTimeout(t *testing.T) {
	t.Parallel()

	slow := &pipeline.FuncStage{
		StageName: "slow",
		ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
			select {
			case <-ctx.Done():
				return pctx, ctx.Err()
			case <-time.After(time.Minute):
				return pctx, nil
			}
		},
	}

	defs := []pipeline.Definition{{Name: "slow", Stage: slow, Timeout: 20 * time.Millisecond}}
	result, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
	require.Error(t, err)
	assert.ErrorIs(t, result.Stages["slow"].Err, context.DeadlineExceeded)
}

func TestOrchestrator_Run_ConcurrentIndependentStages(t *testing.T) {
	t.Parallel()

	var active, peak int32
	var mu sync.Mutex
	mk := func(name string) pipeline.Stage {
		return &pipeline.FuncStage{
			StageName: name,
			ExecuteFunc: func(ctx context.Context, pctx pipeline.Context) (pipeline.Context, error) {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return pctx.WithOutput(name, true), nil
			},
		}
	}

	defs := []pipeline.Definition{
		{Name: "x", Stage: mk("x")},
		{Name: "y", Stage: mk("y")},
		{Name: "z", Stage: mk("z")},
	}

	result, err := pipeline.New(pipeline.WithMaxConcurrency(3)).
		Run(context.Background(), defs, pipeline.NewContext())
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunCompleted, result.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, peak, int32(1), "independent stages should overlap")

	for _, name := range []string{"x", "y", "z"} {
		_, ok := result.Context.Output(name)
		assert.True(t, ok)
	}
}

func TestOrchestrator_Run_StructuralValidation(t *testing.T) {
	t.Parallel()

	t.Run("empty definition set", func(t *testing.T) {
		t.Parallel()

		_, err := pipeline.New().Run(context.Background(), nil, pipeline.NewContext())
		assert.ErrorIs(t, err, pipeline.ErrNoStages)
	})

	t.Run("duplicate names", func(t *testing.T) {
		t.Parallel()

		defs := []pipeline.Definition{
			{Name: "a", Stage: noopStage("a")},
			{Name: "a", Stage: noopStage("a")},
		}
		_, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
		assert.ErrorIs(t, err, pipeline.ErrDuplicateStage)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		t.Parallel()

		defs := []pipeline.Definition{
			{Name: "a", Stage: noopStage("a"), DependsOn: []string{"ghost"}},
		}
		_, err := pipeline.New().Run(context.Background(), defs, pipeline.NewContext())
		assert.ErrorIs(t, err, pipeline.ErrUnknownDependency)
	})
}

func TestRunResult_Failures(t *testing.T) {
	t.Parallel()

	policy := retry.Immediate(2)
	flaky := &recordingStage{name: "converter", executeErr: errors.New("disk full")}

	defs := []pipeline.Definition{{Name: "converter", Stage: flaky, Retry: &policy}}
	initial := pipeline.NewContext(
		pipeline.WithInputs(map[string]any{"file": "a.raw"}),
		pipeline.WithMetadataMap(map[string]string{"env": "test"}),
	)

	result, err := pipeline.New().Run(context.Background(), defs, initial)
	require.Error(t, err)

	failures := result.Failures()
	require.Len(t, failures, 1)

	f := failures[0]
	assert.Equal(t, "converter", f.Stage)
	assert.Equal(t, pipeline.ErrorKindExecution, f.Kind)
	assert.Equal(t, 2, f.Attempts)
	assert.Contains(t, f.Message, "disk full")
	assert.Contains(t, string(f.Payload), "a.raw")
	assert.Contains(t, string(f.Payload), result.RunID)
}
