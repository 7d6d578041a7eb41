package core

import (
	"errors"
	"fmt"

	"learnedkv/pkg/common"
	"learnedkv/pkg/core/learned"
)

var (
	ErrInvalidEpsilon        = learned.ErrInvalidEpsilon
	ErrInvalidBase           = fmt.Errorf("%w: base must be greater than 1", common.ErrConfiguration)
	ErrInvalidBufferCapacity = fmt.Errorf("%w: buffer capacity must be positive", common.ErrConfiguration)
	ErrInvalidBloomFalseProb = fmt.Errorf("%w: bloom false positive rate must be in [0, 1)", common.ErrConfiguration)

	// ErrUnsorted is returned by BulkLoad when pairs are not sorted by key.
	ErrUnsorted = fmt.Errorf("%w: pairs must be sorted by key", common.ErrPrecondition)

	// ErrNotFound is returned by Find. Get reports a miss with its boolean.
	ErrNotFound = errors.New("key not found")
)
