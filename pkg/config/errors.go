package config

import "errors"

var (
	// ErrFailedToReadFile is returned when the config file cannot be read.
	ErrFailedToReadFile = errors.New("failed to read config file")

	// ErrFailedToParseFile is returned when the config file is not valid YAML.
	ErrFailedToParseFile = errors.New("failed to parse config file")

	// ErrParsingEnv is returned when environment parsing fails.
	ErrParsingEnv = errors.New("failed to parse environment configuration")

	// ErrInvalidBackend is returned for an unknown storage backend selector.
	ErrInvalidBackend = errors.New(`storage backend must be "memory" or "postgres"`)

	// ErrInvalidDuration is returned for an unparseable duration value.
	ErrInvalidDuration = errors.New("invalid duration value")
)
