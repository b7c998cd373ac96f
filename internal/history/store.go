// Package history keeps a bounded, newest-first log of past calls
// per user, persisted in BadgerDB.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/domain"
)

// Record is one past-call entry as the client reports it.
type Record struct {
	User      domain.User `json:"user"`
	Type      string      `json:"type"`
	Direction string      `json:"direction"`
	Timestamp string      `json:"timestamp"`
	Status    string      `json:"status"`
	Duration  string      `json:"duration,omitempty"`
}

type Store struct {
	db    *badger.DB
	limit int
}

// Open initializes the underlying badger database at path.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return db, nil
}

func NewStore(db *badger.DB, limit int) *Store {
	return &Store{db: db, limit: limit}
}

// userKey orders entries newest-first under prefix iteration: the
// timestamp component is inverted, so a later append sorts earlier.
func userKey(userID domain.UserID, at time.Time) []byte {
	return []byte(fmt.Sprintf("history:%s:%020d:%s", userID, math.MaxInt64-at.UnixNano(), uuid.NewString()))
}

func userPrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("history:%s:", userID))
}

// Append stores a record for the user and trims the log down to the
// configured limit, dropping the oldest entries.
func (s *Store) Append(userID domain.UserID, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(userKey(userID, time.Now()), data); err != nil {
			return err
		}

		prefix := userPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		kept := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			kept++
			if kept <= s.limit {
				continue
			}
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns up to limit records for the user, most recent first.
// A user with no history gets an empty list, not an error.
func (s *Store) List(userID domain.UserID) ([]Record, error) {
	records := make([]Record, 0, s.limit)
	prefix := userPrefix(userID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = s.limit
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(records) < s.limit; it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var rec Record
				if err := json.Unmarshal(v, &rec); err != nil {
					// A single corrupt entry should not hide the rest.
					log.Warn().Err(err).Str("module", "history").Str("user", string(userID)).Msg("skipping unreadable history entry")
					return nil
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return records, nil
}
