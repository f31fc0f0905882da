package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemStore is an in-process RowStore. Rows live in a map keyed by board.
type MemStore struct {
	mu     sync.RWMutex
	boards map[string][]Row
}

// NewMemStore creates an empty in-memory row store.
func NewMemStore() *MemStore {
	return &MemStore{boards: make(map[string][]Row)}
}

// Select returns up to limit rows for board ordered by score ascending.
func (m *MemStore) Select(ctx context.Context, board string, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	rows := cloneRows(m.boards[board])
	m.mu.RUnlock()

	slices.SortStableFunc(rows, func(a, b Row) int { return cmp.Compare(a.Score, b.Score) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Delete drops every row for board.
func (m *MemStore) Delete(ctx context.Context, board string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.boards, board)
	m.mu.Unlock()
	return nil
}

// Insert appends rows, generating ids for rows without one.
func (m *MemStore) Insert(ctx context.Context, rows []Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := cloneRows(rows)
	next := nextRowID(m.maxID(), out)
	for i := range out {
		if out[i].ID == nil {
			id := next
			out[i].ID = &id
			next++
		}
		m.boards[out[i].Board] = append(m.boards[out[i].Board], out[i])
	}
	return cloneRows(out), nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// Len reports how many rows are stored for board.
func (m *MemStore) Len(board string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boards[board])
}

func (m *MemStore) maxID() int64 {
	maxID := int64(-1)
	for _, rows := range m.boards {
		for _, r := range rows {
			if r.ID != nil && *r.ID > maxID {
				maxID = *r.ID
			}
		}
	}
	return maxID
}

// nextRowID picks the first id above both the stored maximum and any id
// already carried by the batch.
func nextRowID(storedMax int64, batch []Row) int64 {
	maxID := storedMax
	for _, r := range batch {
		if r.ID != nil && *r.ID > maxID {
			maxID = *r.ID
		}
	}
	return maxID + 1
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r
		if r.ID != nil {
			id := *r.ID
			out[i].ID = &id
		}
	}
	return out
}
