// Package ranking implements the ascending-by-score order and the top-N
// eviction policy applied to boards.
package ranking

import (
	"cmp"
	"slices"

	"github.com/okian/area51/internal/domain/record"
)

func byScore(a, b *record.Record) int { return cmp.Compare(a.Score, b.Score) }

// KeepTopN stable-sorts rs ascending by score and truncates it to n entries.
// It returns the kept prefix and the evicted tail (the worst scores).
// The input slice is reordered in place.
func KeepTopN(rs []*record.Record, n int) (kept, evicted []*record.Record) {
	slices.SortStableFunc(rs, byScore)
	if n < 0 {
		n = 0
	}
	if len(rs) <= n {
		return rs, nil
	}
	evicted = slices.Clone(rs[n:])
	clear(rs[n:])
	return rs[:n], evicted
}

// Sorted returns a copy of rs ordered ascending by score. Ties keep their
// relative order, which is what determines displayed rank.
func Sorted(rs []record.Record) []record.Record {
	out := slices.Clone(rs)
	slices.SortStableFunc(out, func(a, b record.Record) int { return cmp.Compare(a.Score, b.Score) })
	return out
}

// Entry is a record with its 1-based display rank.
type Entry struct {
	Rank int `json:"rank"`
	record.Record
}

// Rank orders rs for display and numbers the result from 1.
func Rank(rs []record.Record) []Entry {
	sorted := Sorted(rs)
	out := make([]Entry, len(sorted))
	for i, r := range sorted {
		out[i] = Entry{Rank: i + 1, Record: r}
	}
	return out
}
