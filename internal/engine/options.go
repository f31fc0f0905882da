package engine

import "github.com/okian/area51/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCapacity sets how many records a board keeps after eviction.
func WithCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
