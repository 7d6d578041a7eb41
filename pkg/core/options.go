package core

import (
	"fmt"

	"go.uber.org/zap"

	"learnedkv/pkg/config"
	"learnedkv/pkg/core/learned"
)

type options struct {
	index          learned.Options
	base           int
	bufferCapacity int
	bufferDegree   int
	bloomFalseProb float64
	logger         *zap.Logger
}

func defaultOptions() options {
	def := config.Default()
	return options{
		index: learned.Options{
			Epsilon:          def.Index.Epsilon,
			EpsilonRecursive: def.Index.EpsilonRecursive,
			Parallelism:      def.Index.Parallelism,
		},
		base:           def.Dynamic.Base,
		bufferCapacity: def.Dynamic.BufferCapacity,
		bufferDegree:   def.Dynamic.BufferDegree,
		bloomFalseProb: def.Dynamic.BloomFalseProb,
	}
}

func (o options) validate() error {
	if o.index.Epsilon <= 0 || o.index.EpsilonRecursive <= 0 {
		return fmt.Errorf("%w (epsilon=%d, epsilon_recursive=%d)", ErrInvalidEpsilon, o.index.Epsilon, o.index.EpsilonRecursive)
	}
	if o.base <= 1 {
		return fmt.Errorf("%w (base=%d)", ErrInvalidBase, o.base)
	}
	if o.bufferCapacity <= 0 {
		return fmt.Errorf("%w (buffer_capacity=%d)", ErrInvalidBufferCapacity, o.bufferCapacity)
	}
	if o.bloomFalseProb < 0 || o.bloomFalseProb >= 1 {
		return fmt.Errorf("%w (bloom_false_prob=%g)", ErrInvalidBloomFalseProb, o.bloomFalseProb)
	}
	return nil
}

// Option configures a DynamicIndex.
type Option func(*options)

// WithConfig applies the index and dynamic sections of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.index.Epsilon = cfg.Index.Epsilon
		o.index.EpsilonRecursive = cfg.Index.EpsilonRecursive
		o.index.Parallelism = cfg.Index.Parallelism
		o.base = cfg.Dynamic.Base
		o.bufferCapacity = cfg.Dynamic.BufferCapacity
		if cfg.Dynamic.BufferDegree >= 2 {
			o.bufferDegree = cfg.Dynamic.BufferDegree
		}
		o.bloomFalseProb = cfg.Dynamic.BloomFalseProb
	}
}

// WithEpsilon sets the error bound of every level's data segments.
func WithEpsilon(epsilon int) Option {
	return func(o *options) {
		o.index.Epsilon = epsilon
	}
}

func WithEpsilonRecursive(epsilon int) Option {
	return func(o *options) {
		o.index.EpsilonRecursive = epsilon
	}
}

// WithBase sets the capacity ratio between adjacent levels.
func WithBase(base int) Option {
	return func(o *options) {
		o.base = base
	}
}

// WithBufferCapacity sets how many entries the write buffer holds before
// it is merged into level 0.
func WithBufferCapacity(capacity int) Option {
	return func(o *options) {
		o.bufferCapacity = capacity
	}
}

// WithBloomFalseProb sets the per-level Bloom filter false positive rate.
// Zero disables the filters.
func WithBloomFalseProb(p float64) Option {
	return func(o *options) {
		o.bloomFalseProb = p
	}
}

func WithParallelism(n int) Option {
	return func(o *options) {
		o.index.Parallelism = n
	}
}

// WithLogger sets the logger used for merge and bulk-load events. Defaults
// to zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
