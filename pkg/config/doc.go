// Package config loads and normalizes the execution core's configuration.
//
// Two file shapes are recognized: the current nested shape, grouped by
// concern, and the legacy flat shape with top-level keys. Both are folded
// into one Config by a single normalization step, so the scheduling core
// never branches on shape. When a file mixes both, the nested keys win.
//
// Nested shape:
//
//	pipeline:
//	  retry:
//	    max_attempts: 3
//	    strategy: exponential_backoff
//	    initial_delay: 1s
//	    max_delay: 30s
//	  stage_timeout: 10m
//	storage:
//	  backend: postgres
//
// Legacy flat shape:
//
//	retry_max_attempts: 3
//	retry_strategy: exponential_backoff
//	retry_initial_delay: 1s
//	retry_max_delay: 30s
//	stage_timeout: 10m
//	storage_backend: postgres
//
// Load reads the same settings from environment variables (with optional
// .env file) for deployments that configure through the environment.
package config
