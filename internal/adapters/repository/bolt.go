package repository

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const boltMetaBucket = "meta"

var boltMaxIDKey = []byte("max_id")

// BoltStore is a RowStore backed by a bbolt file. Each board is a bucket of
// JSON rows keyed by the bucket sequence, so iteration follows insert order.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens the bolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltMetaBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Select returns up to limit rows for board ordered by score ascending.
func (b *BoltStore) Select(ctx context.Context, board string, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []Row
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boardBucket(board))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var r Row
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			rows = append(rows, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", board, err)
	}

	slices.SortStableFunc(rows, func(a, b Row) int { return cmp.Compare(a.Score, b.Score) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Delete drops the board bucket.
func (b *BoltStore) Delete(ctx context.Context, board string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(boardBucket(board))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", board, err)
	}
	return nil
}

// Insert stores rows in one transaction and returns them with generated ids.
func (b *BoltStore) Insert(ctx context.Context, rows []Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := cloneRows(rows)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(boltMetaBucket))
		maxID := int64(-1)
		if v := meta.Get(boltMaxIDKey); len(v) == 8 {
			maxID = int64(binary.BigEndian.Uint64(v))
		}

		next := nextRowID(maxID, out)
		for i := range out {
			if out[i].ID == nil {
				id := next
				out[i].ID = &id
				next++
			}
			maxID = max(maxID, *out[i].ID)

			bucket, err := tx.CreateBucketIfNotExists(boardBucket(out[i].Board))
			if err != nil {
				return err
			}
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(out[i])
			if err != nil {
				return err
			}
			if err := bucket.Put(itob(seq), data); err != nil {
				return err
			}
		}
		if maxID < 0 {
			return nil
		}
		return meta.Put(boltMaxIDKey, itob(uint64(maxID)))
	})
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return out, nil
}

// Close closes the bolt file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func boardBucket(board string) []byte {
	return []byte("board:" + board)
}

func itob(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
