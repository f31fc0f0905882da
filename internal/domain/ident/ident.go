// Package ident allocates record ids that are unique across both boards.
package ident

import (
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/record"
)

// CollectIDs returns every assigned id held by the boards.
func CollectIDs(boards ...*board.Board) []int64 {
	var ids []int64
	for _, b := range boards {
		for _, r := range b.Pointers() {
			if v, ok := r.ID.Value(); ok {
				ids = append(ids, v)
			}
		}
	}
	return ids
}

// NextID returns max(assigned ids)+1, or 0 when no record has an id.
// It is recomputed from the boards on every call.
func NextID(boards ...*board.Board) int64 {
	ids := CollectIDs(boards...)
	if len(ids) == 0 {
		return 0
	}
	highest := ids[0]
	for _, id := range ids[1:] {
		highest = max(highest, id)
	}
	return highest + 1
}

// EnsureAllHaveIDs walks the boards once and assigns sequential ids,
// starting at NextID, to records that lack one. It reports whether any
// assignment happened and never persists.
func EnsureAllHaveIDs(boards ...*board.Board) bool {
	return ensure(NextID(boards...), boards...) > 0
}

func ensure(next int64, boards ...*board.Board) int {
	assigned := 0
	for _, b := range boards {
		for _, r := range b.Pointers() {
			if !r.ID.Valid() {
				r.ID = record.NewID(next)
				next++
				assigned++
			}
		}
	}
	return assigned
}

// Allocator hands out ids for a fixed pair of boards. On top of the
// max+1 rule it remembers ids that left the boards during the session
// (deletes, resets, evictions) so they are never issued again.
type Allocator struct {
	boards []*board.Board
	floor  int64
}

// NewAllocator binds an allocator to boards.
func NewAllocator(boards ...*board.Board) *Allocator {
	return &Allocator{boards: boards}
}

// NextID returns the id Allocate would hand out, without consuming it.
func (a *Allocator) NextID() int64 {
	return max(NextID(a.boards...), a.floor)
}

// Allocate returns a fresh id.
func (a *Allocator) Allocate() int64 {
	id := a.NextID()
	a.floor = id + 1
	return id
}

// EnsureAllHaveIDs is the bound form of the package function.
func (a *Allocator) EnsureAllHaveIDs() bool {
	n := ensure(a.NextID(), a.boards...)
	if n > 0 {
		a.floor = max(a.floor, NextID(a.boards...))
	}
	return n > 0
}

// Retire records that id left the boards.
func (a *Allocator) Retire(id int64) {
	a.floor = max(a.floor, id+1)
}
