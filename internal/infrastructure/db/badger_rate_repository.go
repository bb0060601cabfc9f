package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/damon-houk/exchange-rate-service/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-service/internal/domain/repository"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
)

const (
	ratePrefix = "rate:"
	// maxConflictRetries bounds optimistic transaction retries on concurrent inserts
	maxConflictRetries = 3
)

// BadgerRateRepository implements the rate repository interface using BadgerDB.
// Keys are rate:{YYYY-MM-DD}:{BASE}, so lexical order is date order.
type BadgerRateRepository struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerRateRepository creates a new BadgerDB rate repository
func NewBadgerRateRepository(db *badger.DB) *BadgerRateRepository {
	return &BadgerRateRepository{
		db:  db,
		now: time.Now,
	}
}

func rateKey(s *entity.RateSnapshot) []byte {
	return []byte(ratePrefix + s.DateKey() + ":" + s.BaseCurrency.String())
}

// GetLatest returns the snapshot with the most recent date
func (r *BadgerRateRepository) GetLatest(ctx context.Context) (*entity.RateSnapshot, error) {
	var latest *entity.RateSnapshot

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(ratePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key when iterating in reverse
		it.Seek([]byte(ratePrefix + "\xff"))
		if !it.ValidForPrefix([]byte(ratePrefix)) {
			return repository.ErrRateNotFound
		}

		var s entity.RateSnapshot
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		}); err != nil {
			return err
		}
		latest = &s
		return nil
	})

	if errors.Is(err, repository.ErrRateNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve latest rate: %w", err)
	}

	return latest, nil
}

// AddIfAbsentByDate stores the snapshot unless its (base, date) already exists
func (r *BadgerRateRepository) AddIfAbsentByDate(ctx context.Context, snapshot *entity.RateSnapshot) (*entity.RateSnapshot, bool, error) {
	if snapshot == nil {
		return nil, false, fmt.Errorf("snapshot is required")
	}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		var result *entity.RateSnapshot
		var created bool

		result, created, err = r.addIfAbsent(snapshot)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to store rate: %w", err)
		}
		return result, created, nil
	}

	return nil, false, fmt.Errorf("failed to store rate after %d conflicting attempts: %w", maxConflictRetries, err)
}

func (r *BadgerRateRepository) addIfAbsent(snapshot *entity.RateSnapshot) (*entity.RateSnapshot, bool, error) {
	key := rateKey(snapshot)
	var result *entity.RateSnapshot
	created := false

	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			var existing entity.RateSnapshot
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			result = &existing
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		record := *snapshot
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = r.now().UTC()
		}

		data, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("failed to marshal rate: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}

		result = &record
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}

// QueryAll returns every snapshot ordered by date descending, then base currency
func (r *BadgerRateRepository) QueryAll(ctx context.Context) ([]*entity.RateSnapshot, error) {
	snapshots := make([]*entity.RateSnapshot, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ratePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var s entity.RateSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			snapshots = append(snapshots, &s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		if !snapshots[i].Date.Equal(snapshots[j].Date) {
			return snapshots[i].Date.After(snapshots[j].Date)
		}
		return snapshots[i].BaseCurrency < snapshots[j].BaseCurrency
	})

	return snapshots, nil
}

// Save flushes written data to disk. In-memory databases have nothing to flush.
func (r *BadgerRateRepository) Save(ctx context.Context) error {
	if r.db.Opts().InMemory {
		return nil
	}
	if err := r.db.Sync(); err != nil {
		return fmt.Errorf("failed to sync rate store: %w", err)
	}
	return nil
}
