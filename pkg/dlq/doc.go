// Package dlq provides a durable dead letter queue for operations that
// exhausted their retry budget.
//
// The queue never executes work. It records failures with enough structured
// context to retry them later, exposes the status transitions an operator
// dashboard needs (retry, resolve, mark failed, delete, stats), and hands
// resubmission off to a Submitter that feeds the primary work queue.
//
// # Item life cycle
//
//	PENDING ──mark retrying──▶ RETRYING ──resolve──▶ RESOLVED (terminal)
//	   │                          │
//	   └──────mark failed─────────┴──▶ FAILED ──mark retrying──▶ RETRYING
//
// RESOLVED is strictly terminal. FAILED is terminal until an operator manually
// moves the item back to RETRYING. ResolvedAt is set exactly when an item
// becomes RESOLVED, and a repeated resolve cycle overwrites the resolution
// note (last writer wins).
//
// Two backends ship with the package: MemoryQueue for tests and ephemeral use,
// and PostgresQueue for durable storage. Both satisfy the Queue interface with
// identical transition rules, so callers can swap them freely.
package dlq
