// Package board models the two named record collections an engine owns.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/area51/internal/domain/record"
)

// Default sizing shared by the engine and the store adapter.
const (
	// Capacity is how many records a board keeps after eviction.
	Capacity = 10
	// LoadLimit caps how many rows a load fetches from the store.
	LoadLimit = 50
)

// ErrUnknownBoard is returned for tags other than hist and today.
var ErrUnknownBoard = errors.New("unknown board")

// Tag names a board. It doubles as the row tag at the store.
type Tag string

// The two boards.
const (
	Hist  Tag = "hist"
	Today Tag = "today"
)

// Tags lists the boards in persistence order.
func Tags() []Tag { return []Tag{Hist, Today} }

// ParseTag validates a board name.
func ParseTag(s string) (Tag, error) {
	switch t := Tag(strings.ToLower(strings.TrimSpace(s))); t {
	case Hist, Today:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBoard, s)
	}
}

func (t Tag) String() string { return string(t) }

// Board is a mutable collection of records. Records are held by pointer so
// ids back-filled after a persistence round-trip land on the same entries
// the board still holds. A Board is not safe for concurrent use; the
// engine guards it.
type Board struct {
	tag     Tag
	records []*record.Record
}

// New returns an empty board.
func New(tag Tag) *Board {
	return &Board{tag: tag}
}

// Tag returns the board's name.
func (b *Board) Tag() Tag { return b.tag }

// Len returns the number of records.
func (b *Board) Len() int { return len(b.records) }

// Records returns a value copy in storage order.
func (b *Board) Records() []record.Record {
	out := make([]record.Record, len(b.records))
	for i, r := range b.records {
		out[i] = *r
	}
	return out
}

// Pointers returns the live entries in storage order. The slice itself is
// a copy; the pointed-to records are shared with the board.
func (b *Board) Pointers() []*record.Record {
	out := make([]*record.Record, len(b.records))
	copy(out, b.records)
	return out
}

// SetPointers replaces the storage order, e.g. after sorting or eviction.
func (b *Board) SetPointers(ps []*record.Record) {
	b.records = ps
}

// Append adds a copy of r at the end.
func (b *Board) Append(r record.Record) *record.Record {
	p := &r
	b.records = append(b.records, p)
	return p
}

// Replace swaps the whole collection for copies of rs.
func (b *Board) Replace(rs []record.Record) {
	b.records = make([]*record.Record, len(rs))
	for i := range rs {
		r := rs[i]
		b.records[i] = &r
	}
}

// RemoveAt deletes the record at i and returns it.
func (b *Board) RemoveAt(i int) record.Record {
	r := *b.records[i]
	b.records = append(b.records[:i], b.records[i+1:]...)
	return r
}

// Clear removes every record and returns what was held.
func (b *Board) Clear() []record.Record {
	old := b.Records()
	b.records = nil
	return old
}

// IndexFunc returns the first index whose record satisfies f, or -1.
func (b *Board) IndexFunc(f func(record.Record) bool) int {
	for i, r := range b.records {
		if f(*r) {
			return i
		}
	}
	return -1
}
