package pipeline

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/pipekit/pkg/retry"
)

// Definition binds a stage to its name, dependencies and execution policy.
// Definitions are constructed once before a run and immutable afterward.
type Definition struct {
	Name      string
	Stage     Stage
	DependsOn []string
	// Retry is the stage's attempt budget. Nil means a single attempt.
	Retry *retry.Policy
	// Timeout bounds each execution attempt. Zero means no limit.
	Timeout time.Duration
}

// StageOption configures a single Builder.Add call.
type StageOption func(*Definition)

// DependsOn declares the stages that must complete before this one starts.
func DependsOn(names ...string) StageOption {
	return func(d *Definition) { d.DependsOn = append(d.DependsOn, names...) }
}

// WithRetry attaches a retry policy to the stage.
func WithRetry(policy retry.Policy) StageOption {
	return func(d *Definition) { d.Retry = &policy }
}

// WithTimeout bounds each execution attempt of the stage.
func WithTimeout(timeout time.Duration) StageOption {
	return func(d *Definition) { d.Timeout = timeout }
}

// Builder accumulates stage definitions, optionally skipping stages behind
// feature flags. An omitted stage is simply absent from the graph — not
// skipped at run time — so downstream stages must only depend on stages
// guaranteed present under the same flags.
type Builder struct {
	defs []Definition
	errs []error
}

// NewBuilder creates an empty workflow builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a stage definition. The name defaults to the stage's own name
// when left empty in options; duplicate names and nil stages are reported by
// Build.
func (b *Builder) Add(name string, stage Stage, opts ...StageOption) *Builder {
	def := Definition{Name: name, Stage: stage}
	for _, opt := range opts {
		opt(&def)
	}

	if stage == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrNilStage, name))
		return b
	}
	if def.Name == "" {
		def.Name = stage.Name()
	}
	if def.Retry != nil {
		if err := def.Retry.Validate(); err != nil {
			b.errs = append(b.errs, fmt.Errorf("stage %q: %w", def.Name, err))
			return b
		}
	}

	b.defs = append(b.defs, def)
	return b
}

// AddIf appends the stage only when include is true. Use it to wire optional
// stages behind external flags.
func (b *Builder) AddIf(include bool, name string, stage Stage, opts ...StageOption) *Builder {
	if !include {
		return b
	}
	return b.Add(name, stage, opts...)
}

// Build returns the accumulated definitions, validating names and dependency
// references. The graph-level cycle check happens later, in the orchestrator.
func (b *Builder) Build() ([]Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.defs) == 0 {
		return nil, ErrNoStages
	}

	seen := make(map[string]struct{}, len(b.defs))
	for _, def := range b.defs {
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	for _, def := range b.defs {
		for _, dep := range def.DependsOn {
			if _, ok := seen[dep]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency, def.Name, dep)
			}
		}
	}

	out := make([]Definition, len(b.defs))
	copy(out, b.defs)
	return out, nil
}
