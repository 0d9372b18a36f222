// Package redis provides connection bootstrap helpers for the go-redis
// client: an env-driven Config, a Connect function with retry, and a
// Healthcheck closure. The dead-letter resubmission path uses the resulting
// client to push tasks onto the primary work queue list.
package redis
