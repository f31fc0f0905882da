package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/area51/internal/domain/board"
	"github.com/okian/area51/internal/domain/record"
	"github.com/okian/area51/pkg/logger"
	"github.com/okian/area51/pkg/metrics"
)

// Outcome classifies what a persistence call did at the store.
type Outcome int

const (
	// OutcomeNone means no persistence call was made.
	OutcomeNone Outcome = iota
	// OutcomeApplied means the store now holds exactly the given records.
	OutcomeApplied
	// OutcomeSkipped means the empty-board guard suppressed the write.
	// The store is untouched and the call counts as a success.
	OutcomeSkipped
	// OutcomePartial means the board was cleared at the store but the
	// records were not re-inserted. Repopulate can retry the insert.
	OutcomePartial
	// OutcomeRejected means the delete phase failed; the store is unchanged.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomePartial:
		return "partial"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// OK reports whether the outcome counts as a successful save.
func (o Outcome) OK() bool {
	return o == OutcomeApplied || o == OutcomeSkipped
}

// MarshalText renders the outcome name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	for c := OutcomeNone; c <= OutcomeRejected; c++ {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Result is returned by ReplaceAll and Repopulate.
type Result struct {
	Outcome Outcome
	// Records is the persisted list with ids back-filled from the insert,
	// positionally. Empty unless something was inserted.
	Records []record.Record
}

// BoardStore performs whole-board persistence against a RowStore.
type BoardStore struct {
	rows      RowStore
	loadLimit int
	logger    logger.Logger
}

// NewBoardStore wraps rows.
func NewBoardStore(rows RowStore, opts ...Option) *BoardStore {
	s := &BoardStore{
		rows:      rows,
		loadLimit: board.LoadLimit,
		logger:    logger.Default().Named("boardstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches a board. It never fails: on any store error it logs and
// returns an empty board, so a transient fetch failure looks like an empty
// board for the rest of the session.
func (s *BoardStore) Load(ctx context.Context, tag board.Tag) []record.Record {
	start := time.Now()
	rows, err := s.rows.Select(ctx, tag.String(), s.loadLimit)
	metrics.RecordLoadLatency(tag.String(), float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordLoadFailure(tag.String())
		metrics.RecordErrorByComponent("store", "load")
		s.logger.Warn(ctx, "board load failed; treating board as empty",
			logger.String("board", tag.String()),
			logger.Error(err),
		)
		return []record.Record{}
	}
	return recordsFromRows(rows)
}

// ReplaceAll overwrites the board at the store with records: delete every
// row tagged with the board, then insert the full list.
//
// An empty list is a no-op reported as success unless WithAllowClear is
// passed. If the delete fails nothing is inserted (OutcomeRejected). If the
// insert fails the board stays cleared at the store (OutcomePartial); there
// is no rollback.
func (s *BoardStore) ReplaceAll(ctx context.Context, tag board.Tag, records []record.Record, opts ...ReplaceOption) (Result, error) {
	var cfg replaceConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	res, err := s.replaceAll(ctx, tag, records, cfg)
	metrics.RecordPersistLatency(tag.String(), float64(time.Since(start).Milliseconds()))
	metrics.RecordPersistOutcome(tag.String(), res.Outcome.String())
	return res, err
}

func (s *BoardStore) replaceAll(ctx context.Context, tag board.Tag, records []record.Record, cfg replaceConfig) (Result, error) {
	if len(records) == 0 && !cfg.allowClear {
		s.logger.Warn(ctx, "save skipped: board empty and clear not allowed",
			logger.String("board", tag.String()),
		)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	if err := s.rows.Delete(ctx, tag.String()); err != nil {
		metrics.RecordErrorByComponent("store", "delete")
		s.logger.Warn(ctx, "board delete failed", logger.String("board", tag.String()), logger.Error(err))
		return Result{Outcome: OutcomeRejected}, fmt.Errorf("%w: %s: %w", ErrDeleteFailed, tag, err)
	}

	if len(records) == 0 {
		s.logger.Info(ctx, "board cleared", logger.String("board", tag.String()))
		return Result{Outcome: OutcomeApplied}, nil
	}

	return s.insert(ctx, tag, records)
}

// Repopulate runs only the insert phase of ReplaceAll. It is meant for
// retrying after an OutcomePartial, when the board is known to be empty at
// the store.
func (s *BoardStore) Repopulate(ctx context.Context, tag board.Tag, records []record.Record) (Result, error) {
	if len(records) == 0 {
		return Result{Outcome: OutcomeApplied}, nil
	}
	res, err := s.insert(ctx, tag, records)
	metrics.RecordPersistOutcome(tag.String(), res.Outcome.String())
	return res, err
}

func (s *BoardStore) insert(ctx context.Context, tag board.Tag, records []record.Record) (Result, error) {
	inserted, err := s.rows.Insert(ctx, rowsFromRecords(tag, records))
	if err != nil {
		metrics.RecordErrorByComponent("store", "insert")
		s.logger.Warn(ctx, "board insert failed; board left empty at store",
			logger.String("board", tag.String()),
			logger.Int("records", len(records)),
			logger.Error(err),
		)
		return Result{Outcome: OutcomePartial}, fmt.Errorf("%w: %s: %w", ErrInsertFailed, tag, err)
	}

	out := slices.Clone(records)
	for i := range out {
		if out[i].ID.Valid() || i >= len(inserted) {
			continue
		}
		out[i].ID = record.FromPtr(inserted[i].ID)
	}

	s.logger.Debug(ctx, "board persisted",
		logger.String("board", tag.String()),
		logger.Int("records", len(out)),
	)
	return Result{Outcome: OutcomeApplied, Records: out}, nil
}

// rowsFromRecords converts records to rows tagged with the board. Names are
// trimmed and scores rounded on the way out.
func rowsFromRecords(tag board.Tag, records []record.Record) []Row {
	rows := make([]Row, len(records))
	for i, r := range records {
		rows[i] = Row{
			ID:    r.ID.Ptr(),
			Board: tag.String(),
			Name:  strings.TrimSpace(r.Name),
			Score: record.Round2(record.Finite(r.Score)),
		}
	}
	return rows
}

// recordsFromRows converts store rows through the record normalization rules.
func recordsFromRows(rows []Row) []record.Record {
	rs := make([]record.Record, len(rows))
	for i, r := range rows {
		rs[i] = record.Record{ID: record.FromPtr(r.ID), Name: r.Name, Score: r.Score}
	}
	return record.NormalizeAll(rs)
}
