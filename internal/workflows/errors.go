package workflows

import "errors"

// Sentinel errors.
var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrInvalidInput    = errors.New("invalid input")
)
