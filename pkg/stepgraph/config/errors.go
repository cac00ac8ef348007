package config

import "errors"

var (
	// ErrNoBackend indicates Open was called without a checkpoint backend.
	ErrNoBackend = errors.New("no checkpoint backend configured")

	// ErrUnknownBackend indicates a backend name Open does not recognise.
	ErrUnknownBackend = errors.New("unknown checkpoint backend")

	// ErrMissingPostgresURL indicates the postgres backend without a URL.
	ErrMissingPostgresURL = errors.New("postgres url is required")

	// ErrUnsupportedFormat indicates a config file extension FromFile cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported config file extension")

	// ErrUnknownSection indicates a top-level settings key Load does not read.
	ErrUnknownSection = errors.New("unknown config section")

	// ErrSectionNotMapping indicates a settings section holding a scalar or list.
	ErrSectionNotMapping = errors.New("config section must be a mapping")
)
