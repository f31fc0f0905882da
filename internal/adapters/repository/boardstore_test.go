package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/record"
	"github.com/smartystreets/goconvey/convey"
)

var errBoom = errors.New("boom")

// faultyStore wraps a MemStore and fails selected phases.
type faultyStore struct {
	*repository.MemStore
	failSelect bool
	failDelete bool
	failInsert bool
	deletes    int
	inserts    int
}

func (f *faultyStore) Select(ctx context.Context, b string, limit int) ([]repository.Row, error) {
	if f.failSelect {
		return nil, errBoom
	}
	return f.MemStore.Select(ctx, b, limit)
}

func (f *faultyStore) Delete(ctx context.Context, b string) error {
	f.deletes++
	if f.failDelete {
		return errBoom
	}
	return f.MemStore.Delete(ctx, b)
}

func (f *faultyStore) Insert(ctx context.Context, rows []repository.Row) ([]repository.Row, error) {
	f.inserts++
	if f.failInsert {
		return nil, errBoom
	}
	return f.MemStore.Insert(ctx, rows)
}

func newFaulty() *faultyStore {
	return &faultyStore{MemStore: repository.NewMemStore()}
}

func TestBoardStoreReplaceAll(t *testing.T) {
	convey.Convey("Given a board store over an in-memory row store", t, func() {
		ctx := context.Background()
		rows := newFaulty()
		store := repository.NewBoardStore(rows)

		convey.Convey("An empty list without allow-clear is skipped and counts as success", func() {
			_, _ = rows.Insert(ctx, []repository.Row{{Board: "hist", Name: "A", Score: 1}})

			res, err := store.ReplaceAll(ctx, board.Hist, nil)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeSkipped)
			convey.So(res.Outcome.OK(), convey.ShouldBeTrue)
			convey.So(rows.deletes, convey.ShouldEqual, 0)
			convey.So(rows.Len("hist"), convey.ShouldEqual, 1)
		})

		convey.Convey("An empty list with allow-clear clears the board", func() {
			_, _ = rows.Insert(ctx, []repository.Row{{Board: "hist", Name: "A", Score: 1}})

			res, err := store.ReplaceAll(ctx, board.Hist, nil, repository.WithAllowClear())
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
			convey.So(rows.Len("hist"), convey.ShouldEqual, 0)
			convey.So(rows.inserts, convey.ShouldEqual, 1)
		})

		convey.Convey("A full list replaces every row and back-fills missing ids by position", func() {
			_, _ = rows.Insert(ctx, []repository.Row{{Board: "today", Name: "Old", Score: 9}})
			in := []record.Record{
				{ID: record.NewID(4), Name: " Alex ", Score: 5.345},
				{Name: "Sam", Score: 6},
			}

			res, err := store.ReplaceAll(ctx, board.Today, in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
			convey.So(res.Records, convey.ShouldHaveLength, 2)
			convey.So(res.Records[0].ID, convey.ShouldEqual, record.NewID(4))
			convey.So(res.Records[1].ID.Valid(), convey.ShouldBeTrue)
			convey.So(in[1].ID.Valid(), convey.ShouldBeFalse)

			loaded := store.Load(ctx, board.Today)
			convey.So(loaded, convey.ShouldHaveLength, 2)
			convey.So(loaded[0].Name, convey.ShouldEqual, "Alex")
			convey.So(loaded[0].Score, convey.ShouldEqual, 5.35)
		})

		convey.Convey("A failed delete is rejected and nothing is inserted", func() {
			rows.failDelete = true

			res, err := store.ReplaceAll(ctx, board.Hist, []record.Record{{Name: "A", Score: 1}})
			convey.So(errors.Is(err, repository.ErrDeleteFailed), convey.ShouldBeTrue)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeRejected)
			convey.So(rows.inserts, convey.ShouldEqual, 0)
		})

		convey.Convey("A failed insert is partial and leaves the board empty at the store", func() {
			_, _ = rows.Insert(ctx, []repository.Row{{Board: "hist", Name: "A", Score: 1}})
			rows.failInsert = true
			in := []record.Record{{Name: "B", Score: 2}}

			res, err := store.ReplaceAll(ctx, board.Hist, in)
			convey.So(errors.Is(err, repository.ErrInsertFailed), convey.ShouldBeTrue)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomePartial)
			convey.So(res.Outcome.OK(), convey.ShouldBeFalse)
			convey.So(rows.Len("hist"), convey.ShouldEqual, 0)

			convey.Convey("Repopulate restores the rows", func() {
				rows.failInsert = false
				res, err := store.Repopulate(ctx, board.Hist, in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
				convey.So(rows.Len("hist"), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestBoardStoreLoad(t *testing.T) {
	convey.Convey("Given stored rows", t, func() {
		ctx := context.Background()
		rows := newFaulty()
		id := int64(7)
		_, _ = rows.Insert(ctx, []repository.Row{
			{ID: &id, Board: "hist", Name: "Slow", Score: 9.5},
			{Board: "hist", Name: "  ", Score: 1},
			{Board: "hist", Name: "Fast", Score: 3.456},
			{Board: "today", Name: "Other", Score: 2},
		})

		convey.Convey("Load returns the board ordered by score and normalized", func() {
			got := repository.NewBoardStore(rows).Load(ctx, board.Hist)
			convey.So(got, convey.ShouldHaveLength, 2)
			convey.So(got[0].Name, convey.ShouldEqual, "Fast")
			convey.So(got[0].Score, convey.ShouldEqual, 3.46)
			convey.So(got[1].ID, convey.ShouldEqual, record.NewID(7))
		})

		convey.Convey("Load honours the load limit", func() {
			got := repository.NewBoardStore(rows, repository.WithLoadLimit(1)).Load(ctx, board.Hist)
			convey.So(got, convey.ShouldHaveLength, 1)
		})

		convey.Convey("A failed load yields an empty, non-nil board", func() {
			rows.failSelect = true
			got := repository.NewBoardStore(rows).Load(ctx, board.Hist)
			convey.So(got, convey.ShouldNotBeNil)
			convey.So(got, convey.ShouldBeEmpty)
		})
	})
}

func TestOutcomeString(t *testing.T) {
	convey.Convey("Outcomes render their names", t, func() {
		convey.So(repository.OutcomeNone.String(), convey.ShouldEqual, "none")
		convey.So(repository.OutcomePartial.String(), convey.ShouldEqual, "partial")
		b, err := repository.OutcomeRejected.MarshalText()
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(b), convey.ShouldEqual, "rejected")

		var o repository.Outcome
		convey.So(o.UnmarshalText([]byte("skipped")), convey.ShouldBeNil)
		convey.So(o, convey.ShouldEqual, repository.OutcomeSkipped)
		convey.So(o.UnmarshalText([]byte("bogus")), convey.ShouldNotBeNil)
	})
}
