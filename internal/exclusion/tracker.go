// Package exclusion keeps track of candidates already served to a user so
// they are not shown again until the user's set is reset.
package exclusion

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/metrics"
	"github.com/spigell/cloutcash-matcher/internal/utils"
)

const (
	keyPrefix       = "exclusion:"
	maxWriteRetries = 8
	retryBaseDelay  = 5 * time.Millisecond
	retryMaxDelay   = 200 * time.Millisecond

	// lockStripes bounds the per-user write locks. Users sharing a stripe
	// serialise their writes.
	lockStripes = 64
)

// Tracker is the exclusion contract the engine depends on.
type Tracker interface {
	MarkSeen(ctx context.Context, userID string, ids []string) error
	IsSeen(ctx context.Context, userID, id string) (bool, error)
	Snapshot(ctx context.Context, userID string) (Set, error)
	Settle(ctx context.Context, userID string) error
	Reset(ctx context.Context, userID string) error
}

// Set is a user's exclusion state. Settled ids were served by earlier listings,
// Current ids by the listing in progress.
type Set struct {
	Settled []string `json:"settled"`
	Current []string `json:"current"`
}

// Contains reports whether id was served in any listing.
func (s Set) Contains(id string) bool {
	return slices.Contains(s.Settled, id) || slices.Contains(s.Current, id)
}

// Len returns the total number of excluded ids.
func (s Set) Len() int {
	return len(s.Settled) + len(s.Current)
}

// CurrentIndex returns the current listing ids as a lookup set.
func (s Set) CurrentIndex() map[string]struct{} {
	return index(s.Current)
}

func index(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// BadgerTracker stores one record per user in badger.
type BadgerTracker struct {
	db     *badger.DB
	logger *zap.Logger

	locks [lockStripes]sync.Mutex
}

// Open opens (or creates) a badger database in dir. An empty dir opens an
// in-memory database, which is what tests use.
func Open(dir string, logger *zap.Logger) (*badger.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger.Sugar()})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open exclusion store: %w", err)
	}
	return db, nil
}

// NewBadgerTracker wraps an open badger database.
func NewBadgerTracker(db *badger.DB, logger *zap.Logger) *BadgerTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgerTracker{db: db, logger: logger}
}

// MarkSeen adds ids to the user's current listing.
func (t *BadgerTracker) MarkSeen(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return t.update(ctx, userID, func(set *Set) {
		known := index(set.Settled)
		for _, id := range set.Current {
			known[id] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := known[id]; ok {
				continue
			}
			known[id] = struct{}{}
			set.Current = append(set.Current, id)
		}
	})
}

// IsSeen reports whether id was served to the user in any listing since the
// last reset.
func (t *BadgerTracker) IsSeen(ctx context.Context, userID, id string) (bool, error) {
	set, err := t.Snapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Contains(id), nil
}

// Snapshot returns the user's current exclusion state.
func (t *BadgerTracker) Snapshot(_ context.Context, userID string) (Set, error) {
	var set Set
	err := t.db.View(func(txn *badger.Txn) error {
		loaded, err := load(txn, userID)
		set = loaded
		return err
	})
	if err != nil {
		return Set{}, fmt.Errorf("reading exclusions for %q: %w", userID, err)
	}
	return set, nil
}

// Settle closes the user's current listing: its ids become settled.
func (t *BadgerTracker) Settle(ctx context.Context, userID string) error {
	return t.update(ctx, userID, func(set *Set) {
		if len(set.Current) == 0 {
			return
		}
		set.Settled = append(set.Settled, set.Current...)
		set.Current = nil
	})
}

// Reset forgets every id served to the user.
func (t *BadgerTracker) Reset(ctx context.Context, userID string) error {
	mu := t.lock(userID)
	defer mu.Unlock()

	return t.retry(ctx, userID, func() error {
		return t.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key(userID))
		})
	})
}

// ResetAll drops the exclusion sets of every user and returns how many were removed.
func (t *BadgerTracker) ResetAll(_ context.Context) (int, error) {
	var keys [][]byte
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("listing exclusion sets: %w", err)
	}

	wb := t.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("deleting exclusion set: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flushing exclusion reset: %w", err)
	}

	t.logger.Info("exclusion sets reset", zap.Int("users", len(keys)))
	return len(keys), nil
}

func (t *BadgerTracker) update(ctx context.Context, userID string, mutate func(*Set)) error {
	mu := t.lock(userID)
	defer mu.Unlock()

	return t.retry(ctx, userID, func() error {
		return t.db.Update(func(txn *badger.Txn) error {
			set, err := load(txn, userID)
			if err != nil {
				return err
			}

			mutate(&set)

			data, err := json.Marshal(set)
			if err != nil {
				return fmt.Errorf("marshal exclusion set: %w", err)
			}
			return txn.Set(key(userID), data)
		})
	})
}

// retry repeats fn while badger reports a transaction conflict.
func (t *BadgerTracker) retry(ctx context.Context, userID string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) || attempt == maxWriteRetries {
			return fmt.Errorf("writing exclusions for %q: %w", userID, err)
		}

		metrics.ExclusionConflicts.Inc()
		t.logger.Debug("exclusion write conflict, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
		)

		if err := utils.WaitFor(ctx, retryDelay(attempt)); err != nil {
			return err
		}
	}
}

func retryDelay(attempt int) time.Duration {
	return utils.Backoff(attempt, retryBaseDelay, retryMaxDelay)
}

func (t *BadgerTracker) lock(userID string) *sync.Mutex {
	mu := &t.locks[stripe(userID)]
	mu.Lock()
	return mu
}

func stripe(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % lockStripes
}

func load(txn *badger.Txn, userID string) (Set, error) {
	var set Set

	item, err := txn.Get(key(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return set, nil
	}
	if err != nil {
		return set, err
	}

	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &set)
	})
	return set, err
}

func key(userID string) []byte {
	return []byte(keyPrefix + userID)
}
