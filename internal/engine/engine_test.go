package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/area51/internal/adapters/repository"
	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/internal/engine"
	"github.com/smartystreets/goconvey/convey"
)

// recordingStore counts saves and can fail them.
type recordingStore struct {
	*repository.BoardStore
	mu    sync.Mutex
	saves map[board.Tag]int
	fail  error
	seed  map[board.Tag][]record.Record
}

func newRecordingStore(rows repository.RowStore) *recordingStore {
	return &recordingStore{
		BoardStore: repository.NewBoardStore(rows),
		saves:      make(map[board.Tag]int),
	}
}

func (s *recordingStore) Load(ctx context.Context, tag board.Tag) []record.Record {
	if rs, ok := s.seed[tag]; ok {
		return rs
	}
	return s.BoardStore.Load(ctx, tag)
}

func (s *recordingStore) ReplaceAll(ctx context.Context, tag board.Tag, rs []record.Record, opts ...repository.ReplaceOption) (repository.Result, error) {
	s.mu.Lock()
	s.saves[tag]++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return repository.Result{Outcome: repository.OutcomeRejected}, fail
	}
	return s.BoardStore.ReplaceAll(ctx, tag, rs, opts...)
}

func (s *recordingStore) count(tag board.Tag) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[tag]
}

func seedRows(rows *repository.MemStore, tag board.Tag, rs ...record.Record) {
	in := make([]repository.Row, len(rs))
	for i, r := range rs {
		in[i] = repository.Row{ID: r.ID.Ptr(), Board: tag.String(), Name: r.Name, Score: r.Score}
	}
	_, _ = rows.Insert(context.Background(), in)
}

func names(rs []record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func ids(rs []record.Record) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID.Key()
	}
	return out
}

func TestAdd(t *testing.T) {
	convey.Convey("Given an engine over an empty store", t, func() {
		ctx := context.Background()
		rows := repository.NewMemStore()
		store := newRecordingStore(rows)
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		convey.Convey("Adding Alex with 5.345 stores 5.35 at its sorted rank", func() {
			_, err := e.Add(ctx, board.Today, "Sam", 6)
			convey.So(err, convey.ShouldBeNil)
			res, err := e.Add(ctx, board.Today, "  Alex ", 5.345)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Persisted, convey.ShouldBeTrue)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
			convey.So(names(res.Records), convey.ShouldResemble, []string{"Alex", "Sam"})
			convey.So(res.Records[0].Score, convey.ShouldEqual, 5.35)

			stored, _ := rows.Select(ctx, "today", 0)
			convey.So(stored, convey.ShouldHaveLength, 2)
			convey.So(stored[0].Score, convey.ShouldEqual, 5.35)
		})

		convey.Convey("Invalid entries are rejected without touching the boards", func() {
			for _, tc := range []struct {
				name  string
				score float64
				msg   string
			}{
				{"", 5, record.MsgMissingName},
				{"Bo", 0, record.MsgTimePositive},
				{"Bo", -1, record.MsgTimePositive},
			} {
				_, err := e.Add(ctx, board.Hist, tc.name, tc.score)
				convey.So(errors.Is(err, record.ErrValidation), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldEqual, tc.msg)
			}
			convey.So(e.Board(board.Hist), convey.ShouldBeEmpty)
			convey.So(store.count(board.Hist), convey.ShouldEqual, 0)
		})

		convey.Convey("Eleven increasing adds keep the ten lowest after every add", func() {
			for i := 1; i <= 11; i++ {
				res, err := e.Add(ctx, board.Hist, "P", float64(i))
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(res.Records), convey.ShouldEqual, min(i, 10))
				convey.So(res.Records[0].Score, convey.ShouldEqual, 1)
				convey.So(res.Records[len(res.Records)-1].Score, convey.ShouldEqual, float64(min(i, 10)))
			}
			stored, _ := rows.Select(ctx, "hist", 0)
			convey.So(stored, convey.ShouldHaveLength, 10)
		})

		convey.Convey("A better score evicts the worst record", func() {
			for i := 10; i >= 1; i-- {
				_, _ = e.Add(ctx, board.Hist, "P", float64(i+1))
			}
			res, err := e.Add(ctx, board.Hist, "Best", 1)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Records, convey.ShouldHaveLength, 10)
			convey.So(res.Records[0].Name, convey.ShouldEqual, "Best")
			convey.So(res.Records[9].Score, convey.ShouldEqual, 10)
		})

		convey.Convey("A failed save keeps the record in memory", func() {
			store.fail = errors.New("network down")
			res, err := e.Add(ctx, board.Today, "Kim", 4)
			convey.So(errors.Is(err, engine.ErrPersistFailed), convey.ShouldBeTrue)
			convey.So(res.Persisted, convey.ShouldBeFalse)
			convey.So(names(e.Board(board.Today)), convey.ShouldResemble, []string{"Kim"})
		})
	})
}

func TestIdentity(t *testing.T) {
	convey.Convey("Given records spread across both boards", t, func() {
		ctx := context.Background()
		e := engine.New(newRecordingStore(repository.NewMemStore()))
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		a, _ := e.Add(ctx, board.Hist, "A", 3)
		b, _ := e.Add(ctx, board.Today, "B", 2)
		convey.So(ids(a.Records), convey.ShouldResemble, []int64{0})
		convey.So(ids(b.Records), convey.ShouldResemble, []int64{1})

		convey.Convey("Ids are never reissued after a delete", func() {
			_, err := e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(1)})
			convey.So(err, convey.ShouldBeNil)
			res, _ := e.Add(ctx, board.Today, "C", 1)
			convey.So(ids(res.Records), convey.ShouldResemble, []int64{2})
		})

		convey.Convey("No two records share an id", func() {
			for i := 0; i < 5; i++ {
				_, _ = e.Add(ctx, board.Hist, "H", float64(i+1))
				_, _ = e.Add(ctx, board.Today, "T", float64(i+1))
			}
			seen := map[int64]bool{}
			for _, tag := range board.Tags() {
				for _, r := range e.Board(tag) {
					convey.So(seen[r.ID.Key()], convey.ShouldBeFalse)
					seen[r.ID.Key()] = true
				}
			}
		})
	})

	convey.Convey("Bootstrap assigns missing ids and saves both boards", t, func() {
		ctx := context.Background()
		store := newRecordingStore(repository.NewMemStore())
		store.seed = map[board.Tag][]record.Record{
			board.Hist:  {{ID: record.NewID(4), Name: "A", Score: 3}},
			board.Today: {{Name: "B", Score: 2}, {Name: "C", Score: 2.5}},
		}
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)
		convey.So(ids(e.Board(board.Today)), convey.ShouldResemble, []int64{5, 6})
		convey.So(store.count(board.Hist), convey.ShouldEqual, 1)
		convey.So(store.count(board.Today), convey.ShouldEqual, 1)
	})

	convey.Convey("Bootstrap does not save when every record has an id", t, func() {
		ctx := context.Background()
		rows := repository.NewMemStore()
		seedRows(rows, board.Hist, record.Record{ID: record.NewID(1), Name: "A", Score: 3})
		store := newRecordingStore(rows)
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)
		convey.So(store.count(board.Hist), convey.ShouldEqual, 0)
		convey.So(e.Board(board.Hist), convey.ShouldHaveLength, 1)
	})
}

func TestDelete(t *testing.T) {
	convey.Convey("Given a board with duplicate names", t, func() {
		ctx := context.Background()
		rows := repository.NewMemStore()
		seedRows(rows, board.Today,
			record.Record{ID: record.NewID(1), Name: "Ana", Score: 4},
			record.Record{ID: record.NewID(2), Name: "Ana", Score: 5},
			record.Record{ID: record.NewID(3), Name: "Bo", Score: 6},
		)
		store := newRecordingStore(rows)
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		convey.Convey("An id match wins", func() {
			res, err := e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(2), Name: "Ana", Score: 4})
			convey.So(err, convey.ShouldBeNil)
			convey.So(ids(res.Records), convey.ShouldResemble, []int64{1, 3})
		})

		convey.Convey("An absent id falls back to name and score", func() {
			res, _ := e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(5), Name: "Ana", Score: 5})
			convey.So(ids(res.Records), convey.ShouldResemble, []int64{1, 3})
		})

		convey.Convey("Then to the first record with the name", func() {
			res, _ := e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(5), Name: "Ana", Score: 9})
			convey.So(ids(res.Records), convey.ShouldResemble, []int64{2, 3})
			convey.So(store.count(board.Today), convey.ShouldEqual, 1)
		})

		convey.Convey("Nothing matching removes nothing and makes no save", func() {
			res, err := e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(5), Name: "Zed", Score: 1})
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeNone)
			convey.So(res.Records, convey.ShouldHaveLength, 3)
			convey.So(store.count(board.Today), convey.ShouldEqual, 0)
		})

		convey.Convey("Deleting the last record does not clear the store", func() {
			for _, id := range []int64{1, 2, 3} {
				_, _ = e.Delete(ctx, board.Today, engine.Candidate{ID: record.NewID(id)})
			}
			convey.So(e.Board(board.Today), convey.ShouldBeEmpty)
			convey.So(rows.Len("today"), convey.ShouldEqual, 1)

			convey.Convey("Reset does", func() {
				res, err := e.Reset(ctx, board.Today)
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
				convey.So(rows.Len("today"), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestMerge(t *testing.T) {
	convey.Convey("Given hist [A] and today [A, B] sharing id 1", t, func() {
		ctx := context.Background()
		rows := repository.NewMemStore()
		seedRows(rows, board.Hist, record.Record{ID: record.NewID(1), Name: "A", Score: 3})
		seedRows(rows, board.Today,
			record.Record{ID: record.NewID(1), Name: "A", Score: 3},
			record.Record{ID: record.NewID(2), Name: "B", Score: 2.5},
		)
		store := newRecordingStore(rows)
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		res, err := e.Merge(ctx)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("hist gains B only, sorted ascending", func() {
			convey.So(ids(res.Records), convey.ShouldResemble, []int64{2, 1})
			convey.So(names(res.Records), convey.ShouldResemble, []string{"B", "A"})
		})

		convey.Convey("Only hist is saved and today is untouched", func() {
			convey.So(store.count(board.Hist), convey.ShouldEqual, 1)
			convey.So(store.count(board.Today), convey.ShouldEqual, 0)
			convey.So(e.Board(board.Today), convey.ShouldHaveLength, 2)
		})

		convey.Convey("Merging again appends nothing even after name drift", func() {
			_, _ = e.BeginEdit(board.Today)
			_, _ = e.CommitEdit(ctx, board.Today, []record.Record{
				{ID: record.NewID(2), Name: "Bee", Score: 2.4},
				{ID: record.NewID(1), Name: "A", Score: 3},
			})
			again, err := e.Merge(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ids(again.Records), convey.ShouldResemble, []int64{2, 1})
		})
	})

	convey.Convey("Merge caps hist at capacity", t, func() {
		ctx := context.Background()
		e := engine.New(newRecordingStore(repository.NewMemStore()), engine.WithCapacity(3))
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)
		for i := 1; i <= 3; i++ {
			_, _ = e.Add(ctx, board.Hist, "H", float64(i*2))
			_, _ = e.Add(ctx, board.Today, "T", float64(i*2-1))
		}
		res, err := e.Merge(ctx)
		convey.So(err, convey.ShouldBeNil)
		convey.So(res.Records, convey.ShouldHaveLength, 3)
		convey.So(res.Records[0].Score, convey.ShouldEqual, 1)
		convey.So(res.Records[2].Score, convey.ShouldEqual, 3)
	})
}

func TestEdit(t *testing.T) {
	convey.Convey("Given a board with two records", t, func() {
		ctx := context.Background()
		rows := repository.NewMemStore()
		seedRows(rows, board.Hist,
			record.Record{ID: record.NewID(1), Name: "A", Score: 3},
			record.Record{ID: record.NewID(2), Name: "B", Score: 4},
		)
		store := newRecordingStore(rows)
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		snap, err := e.BeginEdit(board.Hist)
		convey.So(err, convey.ShouldBeNil)
		convey.So(snap, convey.ShouldHaveLength, 2)
		convey.So(e.Editing(board.Hist), convey.ShouldBeTrue)

		convey.Convey("Beginning twice fails", func() {
			_, err := e.BeginEdit(board.Hist)
			convey.So(err, convey.ShouldEqual, engine.ErrAlreadyEditing)
		})

		convey.Convey("An unchanged table makes no save", func() {
			res, err := e.CommitEdit(ctx, board.Hist, []record.Record{
				{ID: record.NewID(1), Name: " A ", Score: 3.001},
				{ID: record.NewID(2), Name: "B", Score: 4},
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeNone)
			convey.So(store.count(board.Hist), convey.ShouldEqual, 0)
			convey.So(e.Editing(board.Hist), convey.ShouldBeFalse)
		})

		convey.Convey("A changed table replaces the board and saves it", func() {
			res, err := e.CommitEdit(ctx, board.Hist, []record.Record{
				{ID: record.NewID(1), Name: "Ann", Score: 3.456},
				{ID: record.NewID(2), Name: "", Score: 4},
			})
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeApplied)
			convey.So(names(res.Records), convey.ShouldResemble, []string{"Ann"})
			convey.So(res.Records[0].Score, convey.ShouldEqual, 3.46)
			convey.So(rows.Len("hist"), convey.ShouldEqual, 1)
		})

		convey.Convey("An edit that empties the board is skipped at the store", func() {
			res, err := e.CommitEdit(ctx, board.Hist, nil)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Outcome, convey.ShouldEqual, repository.OutcomeSkipped)
			convey.So(res.Records, convey.ShouldBeEmpty)
			convey.So(rows.Len("hist"), convey.ShouldEqual, 2)
		})

		convey.Convey("Cancel leaves the board as it was", func() {
			convey.So(e.CancelEdit(board.Hist), convey.ShouldBeNil)
			convey.So(e.CancelEdit(board.Hist), convey.ShouldEqual, engine.ErrNotEditing)
			_, err := e.CommitEdit(ctx, board.Hist, nil)
			convey.So(err, convey.ShouldEqual, engine.ErrNotEditing)
			convey.So(e.Board(board.Hist), convey.ShouldHaveLength, 2)
		})
	})
}

func TestEditIdentity(t *testing.T) {
	convey.Convey("Given an engine over an empty store", t, func() {
		ctx := context.Background()
		store := newRecordingStore(repository.NewMemStore())
		e := engine.New(store)
		convey.So(e.Bootstrap(ctx), convey.ShouldBeNil)

		convey.Convey("A row added by an edit never reuses a retired id", func() {
			_, err := e.Add(ctx, board.Today, "A", 1)
			convey.So(err, convey.ShouldBeNil)
			res, err := e.Add(ctx, board.Today, "B", 2)
			convey.So(err, convey.ShouldBeNil)
			retired := res.Records[1].ID
			convey.So(retired, convey.ShouldResemble, record.NewID(1))
			_, err = e.Delete(ctx, board.Today, engine.Candidate{ID: retired})
			convey.So(err, convey.ShouldBeNil)

			_, err = e.BeginEdit(board.Hist)
			convey.So(err, convey.ShouldBeNil)
			res, err = e.CommitEdit(ctx, board.Hist, []record.Record{{Name: "X", Score: 3}})
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Records, convey.ShouldHaveLength, 1)
			convey.So(res.Records[0].ID.Valid(), convey.ShouldBeTrue)
			convey.So(res.Records[0].ID, convey.ShouldNotResemble, retired)
			convey.So(res.Records[0].ID, convey.ShouldNotResemble, record.NewID(0))
		})

		convey.Convey("A row added by an edit never takes the id of an unsaved record", func() {
			_, err := e.Add(ctx, board.Hist, "H", 5)
			convey.So(err, convey.ShouldBeNil)

			store.mu.Lock()
			store.fail = errors.New("store down")
			store.mu.Unlock()
			res, err := e.Add(ctx, board.Today, "T", 4)
			convey.So(errors.Is(err, engine.ErrPersistFailed), convey.ShouldBeTrue)
			unsaved := res.Records[0].ID
			store.mu.Lock()
			store.fail = nil
			store.mu.Unlock()

			_, err = e.BeginEdit(board.Hist)
			convey.So(err, convey.ShouldBeNil)
			snap := e.Board(board.Hist)
			res, err = e.CommitEdit(ctx, board.Hist, append(snap, record.Record{Name: "X", Score: 3}))
			convey.So(err, convey.ShouldBeNil)

			seen := map[int64]bool{}
			for _, tag := range board.Tags() {
				for _, r := range e.Board(tag) {
					convey.So(r.ID.Valid(), convey.ShouldBeTrue)
					convey.So(seen[r.ID.Key()], convey.ShouldBeFalse)
					seen[r.ID.Key()] = true
				}
			}
			convey.So(seen[unsaved.Key()], convey.ShouldBeTrue)

			convey.Convey("And merge keeps the unsaved today record", func() {
				res, err := e.Merge(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(names(res.Records), convey.ShouldResemble, []string{"X", "T", "H"})
			})
		})
	})
}
