// Package engine reconciles the two in-memory boards with the row store.
//
// Every mutation is applied to memory first and then persisted with a
// whole-board replace. A failed save is reported to the caller but local
// state is never rolled back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/ident"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/pkg/logger"
	"github.com/okian/area51/pkg/metrics"
)

const scoreTolerance = 1e-9

// Store is the persistence the engine needs. *repository.BoardStore
// implements it.
type Store interface {
	Load(ctx context.Context, tag board.Tag) []record.Record
	ReplaceAll(ctx context.Context, tag board.Tag, records []record.Record, opts ...repository.ReplaceOption) (repository.Result, error)
}

// Result describes a board after an operation.
type Result struct {
	Board board.Tag `json:"board"`
	// Records is the board sorted ascending by score.
	Records []record.Record `json:"records"`
	// Persisted is true when the store accepted the save, including a save
	// the empty-board guard skipped.
	Persisted bool               `json:"persisted"`
	Outcome   repository.Outcome `json:"outcome"`
}

// Candidate identifies the record a delete request targets.
type Candidate struct {
	ID    record.ID `json:"id"`
	Name  string    `json:"name"`
	Score float64   `json:"score"`
}

// Engine owns the hist and today boards.
type Engine struct {
	mu       sync.Mutex
	boards   map[board.Tag]*board.Board
	alloc    *ident.Allocator
	editing  map[board.Tag][]record.Record
	store    Store
	capacity int
	logger   logger.Logger
}

// New creates an engine with two empty boards. Call Bootstrap to load them.
func New(store Store, opts ...Option) *Engine {
	hist, today := board.New(board.Hist), board.New(board.Today)
	e := &Engine{
		boards:   map[board.Tag]*board.Board{board.Hist: hist, board.Today: today},
		alloc:    ident.NewAllocator(hist, today),
		editing:  make(map[board.Tag][]record.Record),
		store:    store,
		capacity: board.Capacity,
		logger:   logger.Default().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bootstrap loads both boards, assigns ids to records that lack one and,
// when any id was assigned, saves hist then today.
func (e *Engine) Bootstrap(ctx context.Context) error {
	loaded := make(map[board.Tag][]record.Record, 2)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, tag := range board.Tags() {
		g.Go(func() error {
			rs := e.store.Load(gctx, tag)
			mu.Lock()
			loaded[tag] = rs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	for tag, rs := range loaded {
		e.boards[tag].Replace(rs)
		metrics.UpdateBoardSize(tag.String(), len(rs))
	}
	changed := e.alloc.EnsureAllHaveIDs()
	var snaps []snapshot
	if changed {
		snaps = []snapshot{e.capture(board.Hist), e.capture(board.Today)}
	}
	e.mu.Unlock()

	e.logger.Info(ctx, "boards loaded",
		logger.Int("hist", len(loaded[board.Hist])),
		logger.Int("today", len(loaded[board.Today])),
		logger.Bool("ids_assigned", changed),
	)

	var errs []error
	for _, s := range snaps {
		if _, err := e.save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("bootstrap: %w", errs[0])
	}
	return nil
}

// Board returns the records of tag sorted ascending by score.
func (e *Engine) Board(tag board.Tag) []record.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ranking.Sorted(e.boards[tag].Records())
}

// Add validates and appends a new record to tag, evicts down to capacity
// and saves the board. A validation error leaves every board untouched.
func (e *Engine) Add(ctx context.Context, tag board.Tag, name string, score float64) (Result, error) {
	if err := record.ValidateEntry(name, score); err != nil {
		var ve *record.ValidationError
		if errors.As(err, &ve) {
			metrics.RecordValidationReject(ve.Field)
		}
		return Result{Board: tag}, err
	}

	e.mu.Lock()
	b := e.boards[tag]
	r, _ := record.Normalize(record.Record{
		ID:    record.NewID(e.alloc.Allocate()),
		Name:  name,
		Score: score,
	})
	b.Append(r)
	e.evict(b)
	metrics.RecordBoardMutation(tag.String(), "add")
	snap := e.capture(tag)
	e.mu.Unlock()

	e.logger.Debug(ctx, "record added",
		logger.String("board", tag.String()),
		logger.String("id", r.ID.String()),
		logger.Float64("score", r.Score),
	)
	return e.save(ctx, snap)
}

// Delete removes at most one record from tag. The target is resolved by
// id, then by name and score, then by name alone. When nothing matches no
// save is made.
func (e *Engine) Delete(ctx context.Context, tag board.Tag, c Candidate) (Result, error) {
	e.mu.Lock()
	b := e.boards[tag]
	i := resolve(b, c)
	if i < 0 {
		e.mu.Unlock()
		e.logger.Info(ctx, "delete matched no record",
			logger.String("board", tag.String()),
			logger.String("name", c.Name),
		)
		return Result{Board: tag, Records: e.Board(tag), Outcome: repository.OutcomeNone}, nil
	}
	removed := b.RemoveAt(i)
	if v, ok := removed.ID.Value(); ok {
		e.alloc.Retire(v)
	}
	if b.Len() == 0 {
		e.logger.Warn(ctx, "delete emptied the board; the store keeps its rows until reset",
			logger.String("board", tag.String()),
		)
	}
	metrics.RecordBoardMutation(tag.String(), "delete")
	snap := e.capture(tag)
	e.mu.Unlock()

	return e.save(ctx, snap)
}

func resolve(b *board.Board, c Candidate) int {
	if c.ID.Valid() {
		if i := b.IndexFunc(func(r record.Record) bool { return r.ID == c.ID }); i >= 0 {
			return i
		}
	}
	name := strings.TrimSpace(c.Name)
	if i := b.IndexFunc(func(r record.Record) bool {
		return strings.TrimSpace(r.Name) == name && math.Abs(r.Score-c.Score) < scoreTolerance
	}); i >= 0 {
		return i
	}
	return b.IndexFunc(func(r record.Record) bool { return strings.TrimSpace(r.Name) == name })
}

// Merge appends every today record whose id is not already in hist, evicts
// hist down to capacity and saves hist only.
func (e *Engine) Merge(ctx context.Context) (Result, error) {
	e.mu.Lock()
	hist, today := e.boards[board.Hist], e.boards[board.Today]
	e.alloc.EnsureAllHaveIDs()

	present := make(map[int64]struct{}, hist.Len())
	for _, r := range hist.Pointers() {
		present[r.ID.Key()] = struct{}{}
	}
	appended := 0
	for _, r := range today.Records() {
		if _, ok := present[r.ID.Key()]; ok {
			continue
		}
		present[r.ID.Key()] = struct{}{}
		hist.Append(r)
		appended++
	}
	e.evict(hist)
	metrics.RecordMergeAppended(appended)
	metrics.RecordBoardMutation(board.Hist.String(), "merge")
	snap := e.capture(board.Hist)
	e.mu.Unlock()

	e.logger.Info(ctx, "merged today into hist", logger.Int("appended", appended))
	return e.save(ctx, snap)
}

// Reset empties tag in memory and at the store.
func (e *Engine) Reset(ctx context.Context, tag board.Tag) (Result, error) {
	e.mu.Lock()
	for _, r := range e.boards[tag].Clear() {
		if v, ok := r.ID.Value(); ok {
			e.alloc.Retire(v)
		}
	}
	delete(e.editing, tag)
	metrics.RecordBoardMutation(tag.String(), "reset")
	snap := e.capture(tag)
	e.mu.Unlock()

	return e.save(ctx, snap, repository.WithAllowClear())
}

// evict applies the top-N policy to b. Callers hold e.mu.
func (e *Engine) evict(b *board.Board) {
	kept, evicted := ranking.KeepTopN(b.Pointers(), e.capacity)
	b.SetPointers(kept)
	for _, r := range evicted {
		if v, ok := r.ID.Value(); ok {
			e.alloc.Retire(v)
		}
	}
	metrics.RecordEvictions(b.Tag().String(), len(evicted))
}

// snapshot is a board captured for saving outside the lock.
type snapshot struct {
	tag     board.Tag
	ptrs    []*record.Record
	records []record.Record
}

// capture copies tag for saving. Callers hold e.mu.
func (e *Engine) capture(tag board.Tag) snapshot {
	b := e.boards[tag]
	metrics.UpdateBoardSize(tag.String(), b.Len())
	return snapshot{tag: tag, ptrs: slices.Clone(b.Pointers()), records: b.Records()}
}

// save persists s without holding e.mu, so a slow store does not block
// other operations. Ids generated by the store are written back to the
// captured records.
func (e *Engine) save(ctx context.Context, s snapshot, opts ...repository.ReplaceOption) (Result, error) {
	res, err := e.store.ReplaceAll(ctx, s.tag, s.records, opts...)

	if len(res.Records) == len(s.ptrs) {
		e.mu.Lock()
		for i, p := range s.ptrs {
			if !p.ID.Valid() && res.Records[i].ID.Valid() {
				p.ID = res.Records[i].ID
			}
		}
		e.mu.Unlock()
	}

	out := Result{
		Board:     s.tag,
		Records:   e.Board(s.tag),
		Persisted: err == nil && res.Outcome.OK(),
		Outcome:   res.Outcome,
	}
	if err != nil {
		metrics.RecordErrorByComponent("engine", "persist")
		e.logger.Error(ctx, "board save failed",
			logger.String("board", s.tag.String()),
			logger.String("outcome", res.Outcome.String()),
			logger.Error(err),
		)
		return out, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	e.logger.Debug(ctx, "board saved",
		logger.String("board", s.tag.String()),
		logger.String("outcome", res.Outcome.String()),
		logger.String("records", record.MarshalRecords(out.Records)),
	)
	return out, nil
}
