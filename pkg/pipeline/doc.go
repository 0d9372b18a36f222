// Package pipeline provides a dependency-aware stage orchestrator: it builds
// a DAG from named stage definitions, rejects cycles before any side effect,
// computes a deterministic execution order, and drives each stage through
// validate → execute → validate outputs → cleanup with per-stage retry
// policies.
//
// # Building blocks
//
//   - Context    — immutable carrier of configuration, inputs, accumulated
//     outputs, metadata and an optional job store handle; every transition
//     produces a new value
//   - Stage      — the unit of schedulable work; embed BaseStage to inherit
//     no-op Validate, ValidateOutputs and Cleanup
//   - Definition — binds a stage to its name, dependencies, retry policy and
//     timeout; assemble sets with a Builder
//   - Orchestrator — runs a definition set against an initial Context and
//     reports a per-stage result map plus the merged final Context
//
// # Failure semantics
//
// Errors carry a typed kind (validation, execution, lock contention, cleanup)
// so retry decisions are pure functions of values. Validation failures halt
// the run without retrying; execution failures are retried per policy;
// cleanup always runs exactly once per stage and its error never overrides
// the primary outcome. A stage that exhausts its budget is reported with the
// attempt count and a structured failure a caller can forward to a dead
// letter queue — the orchestrator itself never writes there.
//
// Cancellation is cooperative: the run context is checked before each stage
// and between retry attempts, never mid-execution.
package pipeline
