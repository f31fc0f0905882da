// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	taskqueue "github.com/okian/area51/internal/adapters/mq/queue"
	"github.com/okian/area51/internal/adapters/mq/worker"
	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/config"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/dedupe"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/internal/engine"
	"github.com/okian/area51/pkg/logger"
	"github.com/okian/area51/pkg/metrics"
)

const dispatcherShutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by operations called before Start or after
// Stop. It matches queue.ErrStopped.
var ErrNotStarted = fmt.Errorf("service not started: %w", taskqueue.ErrStopped)

// Service implements the API dependencies for the board system.
type Service struct {
	mu sync.RWMutex

	// Core components
	backend    repository.Backend
	store      *repository.BoardStore
	engine     *engine.Engine
	queue      *taskqueue.InMemoryQueue
	dispatcher *worker.Dispatcher
	deduper    dedupe.Deduper[engine.Result]

	// Configuration
	cfg        *config.Config
	ownBackend bool

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: nil, // Will be replaced when service starts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the row store, loads both boards and starts the dispatcher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("service")
	}

	s.logger.Info(ctx, "starting board service...",
		logger.String("driver", s.cfg.StoreDriver),
	)

	if s.backend == nil {
		b, err := repository.Open(ctx, s.cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.backend = b
		s.ownBackend = true
	}

	s.store = repository.NewBoardStore(s.backend,
		repository.WithLoadLimit(s.cfg.LoadLimit),
	)
	s.engine = engine.New(s.store,
		engine.WithCapacity(s.cfg.BoardCapacity),
	)
	if err := s.engine.Bootstrap(ctx); err != nil {
		// The boards are loaded; only the id back-fill save failed.
		s.logger.Warn(ctx, "bootstrap save failed", logger.Error(err))
	}

	s.deduper = dedupe.NewInMemoryDeduper[engine.Result](
		dedupe.WithMaxSize(s.cfg.IdempotencySize),
	)
	s.queue = taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.cfg.QueueSize),
	)
	s.dispatcher = worker.NewDispatcher(s.queue)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.dispatcher.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "board service started",
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int("capacity", s.cfg.BoardCapacity),
		logger.Int("idempotencySize", s.cfg.IdempotencySize),
	)
	return nil
}

// Stop drains queued operations and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping board service...")

	shutdownCtx, done := context.WithTimeout(ctx, dispatcherShutdownTimeout)
	if err := s.dispatcher.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "dispatcher shutdown", logger.Error(err))
	}
	done()
	s.cancel()

	if s.ownBackend {
		if err := s.backend.Close(); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
		s.backend = nil
	}

	s.started = false
	s.logger.Info(ctx, "board service stopped")
}

func (s *Service) running() (*engine.Engine, *worker.Dispatcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.engine, s.dispatcher, nil
}

// Board returns the ranked entries of tag.
func (s *Service) Board(_ context.Context, tag board.Tag) ([]ranking.Entry, error) {
	eng, _, err := s.running()
	if err != nil {
		return nil, err
	}
	return ranking.Rank(eng.Board(tag)), nil
}

// Add appends a record to tag. A non-empty idempotencyKey makes retries
// replay the first result instead of adding again.
func (s *Service) Add(ctx context.Context, tag board.Tag, name string, score float64, idempotencyKey string) (engine.Result, error) {
	eng, d, err := s.running()
	if err != nil {
		return engine.Result{}, err
	}
	return worker.Submit(ctx, d, "add", func(ctx context.Context) (engine.Result, error) {
		if idempotencyKey != "" {
			if prev, ok := s.deduper.Lookup(ctx, idempotencyKey); ok {
				metrics.RecordIdempotentRepeat()
				s.logger.Debug(ctx, "replaying idempotent add", logger.String("key", idempotencyKey))
				return prev, nil
			}
		}
		res, err := eng.Add(ctx, tag, name, score)
		if idempotencyKey != "" && (err == nil || errors.Is(err, engine.ErrPersistFailed)) {
			s.deduper.Record(ctx, idempotencyKey, res)
		}
		return res, err
	})
}

// Delete removes the record c resolves to on tag.
func (s *Service) Delete(ctx context.Context, tag board.Tag, c engine.Candidate) (engine.Result, error) {
	eng, d, err := s.running()
	if err != nil {
		return engine.Result{}, err
	}
	return worker.Submit(ctx, d, "delete", func(ctx context.Context) (engine.Result, error) {
		return eng.Delete(ctx, tag, c)
	})
}

// Merge folds today into hist.
func (s *Service) Merge(ctx context.Context) (engine.Result, error) {
	eng, d, err := s.running()
	if err != nil {
		return engine.Result{}, err
	}
	return worker.Submit(ctx, d, "merge", eng.Merge)
}

// Reset empties tag in memory and at the store.
func (s *Service) Reset(ctx context.Context, tag board.Tag) (engine.Result, error) {
	eng, d, err := s.running()
	if err != nil {
		return engine.Result{}, err
	}
	return worker.Submit(ctx, d, "reset", func(ctx context.Context) (engine.Result, error) {
		return eng.Reset(ctx, tag)
	})
}

// BeginEdit starts an edit session on tag and returns its snapshot.
func (s *Service) BeginEdit(ctx context.Context, tag board.Tag) ([]record.Record, error) {
	eng, d, err := s.running()
	if err != nil {
		return nil, err
	}
	return worker.Submit(ctx, d, "edit_begin", func(context.Context) ([]record.Record, error) {
		return eng.BeginEdit(tag)
	})
}

// CommitEdit ends the edit session on tag with rows as the edited table.
func (s *Service) CommitEdit(ctx context.Context, tag board.Tag, rows []record.Record) (engine.Result, error) {
	eng, d, err := s.running()
	if err != nil {
		return engine.Result{}, err
	}
	return worker.Submit(ctx, d, "edit_commit", func(ctx context.Context) (engine.Result, error) {
		return eng.CommitEdit(ctx, tag, rows)
	})
}

// CancelEdit ends the edit session on tag without changes.
func (s *Service) CancelEdit(ctx context.Context, tag board.Tag) error {
	eng, d, err := s.running()
	if err != nil {
		return err
	}
	return d.Do(ctx, "edit_cancel", func(context.Context) error {
		return eng.CancelEdit(tag)
	})
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"storeDriver":     s.cfg.StoreDriver,
		"boardCapacity":   s.cfg.BoardCapacity,
		"queueCapacity":   s.cfg.QueueSize,
		"idempotencySize": s.cfg.IdempotencySize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		boards := make(map[string]interface{}, 2)
		for _, tag := range board.Tags() {
			boards[tag.String()] = map[string]interface{}{
				"records": len(s.engine.Board(tag)),
				"editing": s.engine.Editing(tag),
			}
		}
		stats["queueLength"] = queueLen
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["boards"] = boards
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		metrics.UpdateSystemMemoryUsage(mem.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	}

	return stats
}
