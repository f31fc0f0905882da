package board_test

import (
	"errors"
	"testing"

	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTag(t *testing.T) {
	Convey("Given board names", t, func() {
		Convey("Then hist and today are accepted case-insensitively", func() {
			tag, err := board.ParseTag(" HIST ")
			So(err, ShouldBeNil)
			So(tag, ShouldEqual, board.Hist)

			tag, err = board.ParseTag("today")
			So(err, ShouldBeNil)
			So(tag, ShouldEqual, board.Today)
		})

		Convey("Then anything else is rejected", func() {
			_, err := board.ParseTag("weekly")
			So(errors.Is(err, board.ErrUnknownBoard), ShouldBeTrue)
		})
	})
}

func TestBoardMutations(t *testing.T) {
	Convey("Given a board with two records", t, func() {
		b := board.New(board.Today)
		p := b.Append(record.Record{Name: "a", Score: 2})
		b.Append(record.Record{ID: record.NewID(1), Name: "b", Score: 1})

		Convey("When a held pointer is updated", func() {
			p.ID = record.NewID(7)

			Convey("Then the board observes the change", func() {
				So(b.Records()[0].ID.Key(), ShouldEqual, 7)
			})
		})

		Convey("When a value copy is modified", func() {
			rs := b.Records()
			rs[0].Name = "changed"

			Convey("Then the board is untouched", func() {
				So(b.Records()[0].Name, ShouldEqual, "a")
			})
		})

		Convey("When removing by index", func() {
			removed := b.RemoveAt(b.IndexFunc(func(r record.Record) bool { return r.Name == "b" }))

			Convey("Then the record is returned and gone", func() {
				So(removed.Name, ShouldEqual, "b")
				So(b.Len(), ShouldEqual, 1)
				So(b.IndexFunc(func(r record.Record) bool { return r.Name == "b" }), ShouldEqual, -1)
			})
		})

		Convey("When clearing", func() {
			old := b.Clear()

			Convey("Then the old contents are returned", func() {
				So(len(old), ShouldEqual, 2)
				So(b.Len(), ShouldEqual, 0)
			})
		})

		Convey("When replacing", func() {
			b.Replace([]record.Record{{Name: "z", Score: 9}})

			Convey("Then only the new records remain", func() {
				So(b.Len(), ShouldEqual, 1)
				So(b.Records()[0].Name, ShouldEqual, "z")
			})
		})
	})
}
