package engine

import (
	"context"

	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/ranking"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/pkg/logger"
	"github.com/okian/area51/pkg/metrics"
)

// BeginEdit moves tag into editing and returns the snapshot the edit will
// be diffed against: the board as displayed, normalized.
func (e *Engine) BeginEdit(tag board.Tag) ([]record.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.editing[tag]; ok {
		return nil, ErrAlreadyEditing
	}
	snap := record.NormalizeAll(ranking.Sorted(e.boards[tag].Records()))
	e.editing[tag] = snap
	return snap, nil
}

// Editing reports whether tag is being edited.
func (e *Engine) Editing(tag board.Tag) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.editing[tag]
	return ok
}

// CancelEdit leaves editing without applying anything.
func (e *Engine) CancelEdit(tag board.Tag) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.editing[tag]; !ok {
		return ErrNotEditing
	}
	delete(e.editing, tag)
	return nil
}

// CommitEdit leaves editing with rows as the edited table. If rows differ
// from the snapshot the board is replaced by their normalized form and
// saved; otherwise nothing is saved. An edit that empties the board is
// applied in memory but the store keeps its rows, because the save runs
// without allow-clear.
func (e *Engine) CommitEdit(ctx context.Context, tag board.Tag, rows []record.Record) (Result, error) {
	e.mu.Lock()
	before, ok := e.editing[tag]
	if !ok {
		e.mu.Unlock()
		return Result{Board: tag}, ErrNotEditing
	}
	delete(e.editing, tag)

	if record.SameData(before, rows) {
		e.mu.Unlock()
		return Result{Board: tag, Records: e.Board(tag), Outcome: repository.OutcomeNone}, nil
	}

	b := e.boards[tag]
	edited := record.NormalizeAll(rows)
	kept := make(map[int64]struct{}, len(edited))
	for _, r := range edited {
		kept[r.ID.Key()] = struct{}{}
	}
	for _, r := range b.Pointers() {
		if v, ok := r.ID.Value(); ok {
			if _, still := kept[v]; !still {
				e.alloc.Retire(v)
			}
		}
	}
	b.Replace(edited)
	// New rows take ids from the allocator, which sees unsaved and retired
	// ids the store does not.
	e.alloc.EnsureAllHaveIDs()
	if b.Len() == 0 {
		e.logger.Warn(ctx, "edit emptied the board; the store keeps its rows until reset",
			logger.String("board", tag.String()),
		)
	}
	metrics.RecordBoardMutation(tag.String(), "edit")
	snap := e.capture(tag)
	e.mu.Unlock()

	return e.save(ctx, snap)
}
