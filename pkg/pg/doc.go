// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver. It wires connection pooling, embedded schema migrations,
// health checks, and common error helpers so the durable state backends can
// bootstrap a database layer with a few lines of code.
//
// Three cooperating building blocks:
//
//   - Config, a declarative struct populated from environment variables via
//     github.com/caarlos0/env. It controls connection pool limits,
//     health-check cadence and the migration version table.
//
//   - Connect, which opens a *pgxpool.Pool based on Config, retrying with
//     a growing back-off until the database becomes available.
//
//   - Migrate, which applies the goose migrations embedded in this package
//     (the job and dead-letter tables) against the same pool, so the schema
//     is current before any worker starts.
//
// Error helpers such as IsNotFoundError and IsDuplicateKeyError unwrap pgx
// and *pgconn.PgError values to make classification trivial in the storage
// packages.
package pg
