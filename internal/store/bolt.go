package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tartampluch/go-lunarcal/internal/config"
	"github.com/tartampluch/go-lunarcal/internal/engine"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrNotFound    = errors.New(config.ErrNotFound)
	ErrEmptyID     = engine.ErrEmptyID
	ErrDuplicateID = errors.New(config.ErrDuplicateID)
	ErrClosed      = errors.New(config.ErrStoreClosed)
)

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

type mutation struct {
	kind opKind
	s    engine.Schedule
}

// BoltStore keeps schedules in a single bbolt bucket, keyed by ID, with JSON
// values. Create, Update and Delete only stage; Commit applies the staged
// batch in one transaction.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte

	mu     sync.Mutex
	staged []mutation
}

// Open opens (or creates) the database file at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, config.FilePermUserRW, &bolt.Options{Timeout: config.DBOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", config.ErrStoreOpen, path, err)
	}

	s := &BoltStore{db: db, bucket: []byte(config.BucketSchedules)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s %s: %w", config.ErrStoreOpen, path, err)
	}
	return s, nil
}

// Close releases the database file. Staged mutations are dropped.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BoltStore) Create(sch engine.Schedule) error { return s.stage(opCreate, sch) }
func (s *BoltStore) Update(sch engine.Schedule) error { return s.stage(opUpdate, sch) }
func (s *BoltStore) Delete(sch engine.Schedule) error { return s.stage(opDelete, sch) }

func (s *BoltStore) stage(kind opKind, sch engine.Schedule) error {
	if sch.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	s.staged = append(s.staged, mutation{kind: kind, s: sch})
	return nil
}

// Pending returns the number of staged mutations.
func (s *BoltStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// Rollback discards staged mutations.
func (s *BoltStore) Rollback() {
	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()
}

// Commit applies every staged mutation atomically. Creating an existing ID,
// or updating or deleting a missing one, aborts the whole batch. The batch
// is consumed either way.
func (s *BoltStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	batch := s.staged
	s.staged = nil
	if len(batch) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, m := range batch {
			key := []byte(m.s.ID)
			exists := b.Get(key) != nil

			switch m.kind {
			case opDelete:
				if !exists {
					return fmt.Errorf("%w: %s", ErrNotFound, m.s.ID)
				}
				if err := b.Delete(key); err != nil {
					return err
				}
				continue
			case opCreate:
				if exists {
					return fmt.Errorf("%w: %s", ErrDuplicateID, m.s.ID)
				}
			case opUpdate:
				if !exists {
					return fmt.Errorf("%w: %s", ErrNotFound, m.s.ID)
				}
			}

			raw, err := json.Marshal(m.s)
			if err != nil {
				return err
			}
			if err := b.Put(key, raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrCommit, err)
	}

	slog.Debug(config.MsgScheduleSaved,
		config.LogKeyComponent, config.CompStore,
		config.LogKeyCount, len(batch))
	return nil
}

// Query returns the committed schedules matching pred, ordered by date then ID.
// Records that fail to decode are skipped and logged.
func (s *BoltStore) Query(pred func(engine.Schedule) bool) ([]engine.Schedule, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, ErrClosed
	}

	var out []engine.Schedule
	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var sch engine.Schedule
			if err := json.Unmarshal(v, &sch); err != nil {
				slog.Warn(config.ErrScheduleDecode,
					config.LogKeyComponent, config.CompStore,
					config.LogKeyID, string(k),
					config.LogKeyError, err)
				return nil
			}
			if pred == nil || pred(sch) {
				out = append(out, sch)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b engine.Schedule) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Get returns the committed schedule with the given ID.
func (s *BoltStore) Get(id string) (engine.Schedule, error) {
	found, err := s.Query(func(sch engine.Schedule) bool { return sch.ID == id })
	if err != nil {
		return engine.Schedule{}, err
	}
	if len(found) == 0 {
		return engine.Schedule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found[0], nil
}
