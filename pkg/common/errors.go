package common

import "errors"

var (
	// ErrConfiguration wraps every invalid-parameter error (epsilon, base,
	// buffer capacity). Construction fails before any structure is produced.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrPrecondition wraps caller bugs such as unsorted input to a build.
	ErrPrecondition = errors.New("precondition violated")
)
