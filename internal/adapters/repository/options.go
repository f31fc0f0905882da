package repository

import "github.com/okian/area51/pkg/logger"

// Option applies a configuration option to the BoardStore.
type Option func(*BoardStore)

// WithLogger sets a custom logger for the store adapter.
func WithLogger(l logger.Logger) Option {
	return func(s *BoardStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoadLimit caps the number of rows fetched per board load.
func WithLoadLimit(limit int) Option {
	return func(s *BoardStore) {
		if limit > 0 {
			s.loadLimit = limit
		}
	}
}

// ReplaceOption tunes a single ReplaceAll call.
type ReplaceOption func(*replaceConfig)

type replaceConfig struct {
	allowClear bool
}

// WithAllowClear authorizes ReplaceAll to empty the board at the store.
// Only an explicit reset should pass it.
func WithAllowClear() ReplaceOption {
	return func(c *replaceConfig) { c.allowClear = true }
}
