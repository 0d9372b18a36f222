package pipeline

import "context"

// Stage is the capability interface every schedulable unit of work implements.
// The orchestrator treats all stages uniformly; what a stage does is entirely
// its own business.
type Stage interface {
	// Name is the stable identifier used as a graph node and in reporting.
	// It must be unique within one definition set.
	Name() string

	// Validate is a cheap, side-effect-free precondition check, called once
	// before the first execution attempt. A failure fails the stage without
	// entering the retry loop.
	Validate(ctx context.Context, pctx Context) error

	// Execute performs the work and returns a new Context with additional
	// outputs merged in.
	Execute(ctx context.Context, pctx Context) (Context, error)

	// ValidateOutputs checks postconditions on the Context returned by
	// Execute. A failure counts against the retry budget like an execution
	// failure.
	ValidateOutputs(ctx context.Context, pctx Context) error

	// Cleanup releases resources opened by Validate or Execute. It is called
	// exactly once per run, whatever the outcome.
	Cleanup(ctx context.Context, pctx Context) error
}

// BaseStage provides no-op Validate, ValidateOutputs and Cleanup so concrete
// stages only implement what they need. Embed it and add Name and Execute.
type BaseStage struct{}

func (BaseStage) Validate(ctx context.Context, pctx Context) error        { return nil }
func (BaseStage) ValidateOutputs(ctx context.Context, pctx Context) error { return nil }
func (BaseStage) Cleanup(ctx context.Context, pctx Context) error         { return nil }

// FuncStage adapts plain functions to the Stage interface. Nil hooks behave
// like the BaseStage no-ops. Useful for small stages and tests.
type FuncStage struct {
	StageName           string
	ExecuteFunc         func(ctx context.Context, pctx Context) (Context, error)
	ValidateFunc        func(ctx context.Context, pctx Context) error
	ValidateOutputsFunc func(ctx context.Context, pctx Context) error
	CleanupFunc         func(ctx context.Context, pctx Context) error
}

func (s *FuncStage) Name() string { return s.StageName }

func (s *FuncStage) Validate(ctx context.Context, pctx Context) error {
	if s.ValidateFunc == nil {
		return nil
	}
	return s.ValidateFunc(ctx, pctx)
}

func (s *FuncStage) Execute(ctx context.Context, pctx Context) (Context, error) {
	if s.ExecuteFunc == nil {
		return pctx, nil
	}
	return s.ExecuteFunc(ctx, pctx)
}

func (s *FuncStage) ValidateOutputs(ctx context.Context, pctx Context) error {
	if s.ValidateOutputsFunc == nil {
		return nil
	}
	return s.ValidateOutputsFunc(ctx, pctx)
}

func (s *FuncStage) Cleanup(ctx context.Context, pctx Context) error {
	if s.CleanupFunc == nil {
		return nil
	}
	return s.CleanupFunc(ctx, pctx)
}
