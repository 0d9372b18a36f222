// Package jobstore provides a durable job ledger with interchangeable storage
// backends.
//
// A Job is a persistent record of a pipeline run: a type label, a free-form
// status string, and a structured context payload. The store never interprets
// the status beyond storing it, and updates are always partial merges — fields
// (and context keys) not mentioned in an update are left untouched.
//
// Two implementations ship with the package:
//
//   - MemoryStore    — mutex-guarded map, for tests and ephemeral runs
//   - PostgresStore  — pgx-backed table that survives restarts
//
// Both satisfy the Store interface with identical ordering and merge semantics,
// so callers can swap backends without behavior change. IDs are repository-local
// and strictly increasing.
package jobstore
