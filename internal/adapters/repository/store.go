// Package repository adapts boards to a remote tagged row store.
//
// RowStore is the collaborator boundary: a table of rows tagged with a
// board name that supports select, delete-by-tag and insert. BoardStore
// sits on top of it and implements whole-board load and replace-all.
package repository

import (
	"context"
	"io"
)

// Row is the shape exchanged with the row store.
type Row struct {
	ID    *int64  `json:"id,omitempty"`
	Board string  `json:"board"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RowStore is the remote collaborator consumed by BoardStore.
type RowStore interface {
	// Select returns up to limit rows tagged board, ordered by score
	// ascending. A limit <= 0 means no limit.
	Select(ctx context.Context, board string, limit int) ([]Row, error)

	// Delete removes every row tagged board.
	Delete(ctx context.Context, board string) error

	// Insert stores rows and returns them, in input order, with generated
	// ids filled in for rows that had none.
	Insert(ctx context.Context, rows []Row) ([]Row, error)
}

// Backend is a RowStore that owns resources.
type Backend interface {
	RowStore
	io.Closer
}
