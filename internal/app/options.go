package service

import (
	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/config"
	"github.com/okian/area51/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig uses cfg for store selection and sizing.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithBackend injects an already opened row store. The service does not
// close it on Stop.
func WithBackend(b repository.Backend) Option {
	return func(s *Service) {
		s.backend = b
	}
}

// WithQueueSize sets the maximum number of queued operations.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cfg.QueueSize = size
		}
	}
}

// WithIdempotencySize sets how many idempotency keys are remembered.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cfg.IdempotencySize = size
		}
	}
}

// WithBoardCapacity sets how many records a board keeps.
func WithBoardCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cfg.BoardCapacity = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
