package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore is a RowStore backed by a local SQLite table.
//
// Rows carry an internal primary key; the user-visible id column is not
// unique because the same record may sit on both boards after a merge.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens (or creates) the database at path and bootstraps
// the table.
func NewSQLiteStore(ctx context.Context, path, table string) (*SQLiteStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite doesn't handle multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			pk    INTEGER PRIMARY KEY AUTOINCREMENT,
			id    INTEGER NOT NULL,
			board TEXT    NOT NULL,
			name  TEXT    NOT NULL,
			score REAL    NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_board_score ON %s (board, score)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	return nil
}

// Select returns up to limit rows for board ordered by score ascending.
// Ties keep insertion order.
func (s *SQLiteStore) Select(ctx context.Context, board string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = -1
	}
	q := fmt.Sprintf(`SELECT id, board, name, score FROM %s WHERE board = ? ORDER BY score ASC, pk ASC LIMIT ?`, s.table)
	rs, err := s.db.QueryContext(ctx, q, board, limit)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", board, err)
	}
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		var (
			r  Row
			id int64
		)
		if err := rs.Scan(&id, &r.Board, &r.Name, &r.Score); err != nil {
			return nil, fmt.Errorf("scan %s: %w", board, err)
		}
		r.ID = &id
		rows = append(rows, r)
	}
	return rows, rs.Err()
}

// Delete drops every row for board.
func (s *SQLiteStore) Delete(ctx context.Context, board string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE board = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, q, board); err != nil {
		return fmt.Errorf("delete %s: %w", board, err)
	}
	return nil
}

// Insert stores rows in one transaction and returns them with generated ids.
func (s *SQLiteStore) Insert(ctx context.Context, rows []Row) ([]Row, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedMax sql.NullInt64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(id) FROM %s`, s.table)).Scan(&storedMax); err != nil {
		return nil, fmt.Errorf("max id: %w", err)
	}
	maxID := int64(-1)
	if storedMax.Valid {
		maxID = storedMax.Int64
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, board, name, score) VALUES (?, ?, ?, ?)`, s.table))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out := cloneRows(rows)
	next := nextRowID(maxID, out)
	for i := range out {
		if out[i].ID == nil {
			id := next
			out[i].ID = &id
			next++
		}
		if _, err := stmt.ExecContext(ctx, *out[i].ID, out[i].Board, strings.TrimSpace(out[i].Name), out[i].Score); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return out, nil
}

// Ping checks if the database is accessible.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
