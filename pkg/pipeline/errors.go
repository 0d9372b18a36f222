package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoStages is returned when a run is requested with an empty definition set.
	ErrNoStages = errors.New("no stages defined")

	// ErrNilStage is returned when a definition carries no stage implementation.
	ErrNilStage = errors.New("stage implementation cannot be nil")

	// ErrDuplicateStage is returned when two definitions share a name.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrUnknownDependency is returned when a definition depends on a name
	// absent from the set.
	ErrUnknownDependency = errors.New("dependency references unknown stage")

	// ErrLockTimeout marks a bounded-wait lock acquisition that ran out of
	// time. Stage bodies surface it so callers can attach a more patient
	// retry policy to contended stages.
	ErrLockTimeout = errors.New("timed out acquiring exclusive lock")
)

// ErrorKind classifies stage failures so retry and triage decisions are pure
// functions of a typed value.
type ErrorKind string

const (
	// ErrorKindValidation marks a failed precondition or postcondition check.
	// Never retried.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindExecution marks a failure inside Execute. Retried per policy.
	ErrorKindExecution ErrorKind = "execution"
	// ErrorKindLockContention marks a bounded-wait lock timeout. A retryable
	// sub-kind of execution failure.
	ErrorKindLockContention ErrorKind = "lock_contention"
	// ErrorKindCleanup marks a failure inside Cleanup. Recorded, never fatal.
	ErrorKindCleanup ErrorKind = "cleanup"
)

// StageError wraps a stage failure with its kind, the stage name and the
// operation that raised it.
type StageError struct {
	Kind  ErrorKind
	Stage string
	Op    string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q %s (%s): %v", e.Stage, e.Op, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the given kind, preserving the kind of an
// already-wrapped StageError only when the caller passes ErrorKindExecution
// (the generic default).
func NewStageError(kind ErrorKind, stage, op string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Op: op, Err: err}
}

// LockContentionError marks err as a lock-contention failure of the given
// stage. Stage bodies use it when a bounded-wait exclusive lock times out.
func LockContentionError(stage string, err error) *StageError {
	return &StageError{Kind: ErrorKindLockContention, Stage: stage, Op: "execute", Err: err}
}

// KindOf extracts the error kind, defaulting to execution for plain errors.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrLockTimeout) {
		return ErrorKindLockContention
	}
	return ErrorKindExecution
}

// IsLockContention reports whether err is a lock-contention failure.
func IsLockContention(err error) bool {
	return KindOf(err) == ErrorKindLockContention
}

// CycleError reports a dependency cycle. The cycle path lists stage names in
// dependency order with the starting stage repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}
