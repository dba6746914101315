// Package store persists the ledger emulator's journals and tokens in bbolt.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// Bucket names.
const (
	BucketTokens   = "tokens"
	BucketJournals = "journals"
)

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New opens the database and creates its buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketTokens, BucketJournals} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutToken stores an access token with its expiry.
func (s *Store) PutToken(token string, expiresAt time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v := strconv.FormatInt(expiresAt.Unix(), 10)
		return tx.Bucket([]byte(BucketTokens)).Put([]byte(token), []byte(v))
	})
}

// TokenExpiry returns when a token expires.
func (s *Store) TokenExpiry(token string) (time.Time, error) {
	var expiresAt time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketTokens)).Get([]byte(token))
		if data == nil {
			return ErrNotFound
		}
		sec, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse expiration time: %w", err)
		}
		expiresAt = time.Unix(sec, 0)
		return nil
	})
	return expiresAt, err
}

// DeleteToken removes a token.
func (s *Store) DeleteToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketTokens)).Delete([]byte(token))
	})
}

// insert assigns the next sequence of a bucket to a record and stores it.
// assign receives the id before the value is marshaled.
func (s *Store) insert(bucket string, assign func(id int64) any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(assign(int64(seq)))
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		return b.Put(itob(int64(seq)), data)
	})
}

func (s *Store) get(bucket string, id int64, value any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, value)
	})
}

// list returns copies of every value in id order that passes filter.
func (s *Store) list(bucket string, filter func(data []byte) bool) ([][]byte, error) {
	var results [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(_, v []byte) error {
			if filter == nil || filter(v) {
				copied := make([]byte, len(v))
				copy(copied, v)
				results = append(results, copied)
			}
			return nil
		})
	})
	return results, err
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
