package pipeline

import (
	"maps"

	"github.com/dmitrymomot/pipekit/pkg/jobstore"
)

// Context is the immutable value threaded through a pipeline run. Every
// transition returns a new Context; the receiver is never mutated, so two
// stages can never observe the same mutable state.
//
// Outputs grow monotonically as stages complete. Config is an opaque handle
// the core never interprets.
type Context struct {
	config   any
	jobID    int64
	hasJobID bool
	inputs   map[string]any
	outputs  map[string]any
	metadata map[string]string
	store    jobstore.Store
}

// ContextOption configures the initial Context of a run.
type ContextOption func(*Context)

// WithConfig attaches an opaque configuration handle.
func WithConfig(config any) ContextOption {
	return func(c *Context) { c.config = config }
}

// WithInputs seeds the initial inputs.
func WithInputs(inputs map[string]any) ContextOption {
	return func(c *Context) { c.inputs = maps.Clone(inputs) }
}

// WithMetadataMap seeds the initial metadata.
func WithMetadataMap(metadata map[string]string) ContextOption {
	return func(c *Context) { c.metadata = maps.Clone(metadata) }
}

// WithStore attaches the job ledger handle stages may use to record progress.
func WithStore(store jobstore.Store) ContextOption {
	return func(c *Context) { c.store = store }
}

// NewContext creates the initial Context for one pipeline run.
func NewContext(opts ...ContextOption) Context {
	c := Context{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.inputs == nil {
		c.inputs = map[string]any{}
	}
	if c.outputs == nil {
		c.outputs = map[string]any{}
	}
	if c.metadata == nil {
		c.metadata = map[string]string{}
	}
	return c
}

// Config returns the opaque configuration handle.
func (c Context) Config() any { return c.config }

// JobID returns the job ledger id for this run, if one was attached.
func (c Context) JobID() (int64, bool) { return c.jobID, c.hasJobID }

// Store returns the job ledger handle, which may be nil.
func (c Context) Store() jobstore.Store { return c.store }

// Input returns a single input value.
func (c Context) Input(key string) (any, bool) {
	v, ok := c.inputs[key]
	return v, ok
}

// Inputs returns a copy of all inputs.
func (c Context) Inputs() map[string]any { return maps.Clone(c.inputs) }

// Output returns a single accumulated output value.
func (c Context) Output(key string) (any, bool) {
	v, ok := c.outputs[key]
	return v, ok
}

// Outputs returns a copy of all accumulated outputs.
func (c Context) Outputs() map[string]any { return maps.Clone(c.outputs) }

// Metadata returns a single metadata value.
func (c Context) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// MetadataMap returns a copy of all metadata.
func (c Context) MetadataMap() map[string]string { return maps.Clone(c.metadata) }

// WithJobID returns a new Context bound to the given job ledger id.
func (c Context) WithJobID(id int64) Context {
	c.jobID = id
	c.hasJobID = true
	return c
}

// WithInput returns a new Context with one input added or replaced.
func (c Context) WithInput(key string, value any) Context {
	inputs := maps.Clone(c.inputs)
	inputs[key] = value
	c.inputs = inputs
	return c
}

// WithOutput returns a new Context with one output added or replaced. The
// receiver's outputs are left untouched.
func (c Context) WithOutput(key string, value any) Context {
	outputs := maps.Clone(c.outputs)
	outputs[key] = value
	c.outputs = outputs
	return c
}

// WithOutputs returns a new Context with every given output merged in.
func (c Context) WithOutputs(values map[string]any) Context {
	if len(values) == 0 {
		return c
	}
	outputs := maps.Clone(c.outputs)
	maps.Copy(outputs, values)
	c.outputs = outputs
	return c
}

// WithMetadata returns a new Context with one metadata entry added or replaced.
func (c Context) WithMetadata(key, value string) Context {
	metadata := maps.Clone(c.metadata)
	metadata[key] = value
	c.metadata = metadata
	return c
}

// mergeOutputs folds another context's outputs into this one. Used by the
// orchestrator when a stage completes.
func (c Context) mergeOutputs(other Context) Context {
	return c.WithOutputs(other.outputs)
}
