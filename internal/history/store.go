// Package history persists analysis records per comparison key.
//
// Records are append-only. Every Store guarantees that an Append is either
// fully visible to a later Fetch or not visible at all, and that appending a
// record whose ID is already stored is a no-op.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"

	"speech-analytics-go/internal/types"
)

// Store is the boundary the engine reads from and appends to.
type Store interface {
	// Fetch returns the records for key, oldest first.
	Fetch(ctx context.Context, key string) ([]types.HistoricalRecord, error)
	// Append adds rec under key.
	Append(ctx context.Context, key string, rec types.HistoricalRecord) error
}

// Lister is implemented by stores that can enumerate their comparison keys.
type Lister interface {
	// Keys returns every key with at least one record, sorted.
	Keys(ctx context.Context) ([]string, error)
}

// ErrEmptyKey is returned for a blank comparison key.
var ErrEmptyKey = errors.New("history: empty comparison key")

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string][]types.HistoricalRecord
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Lister = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: map[string][]types.HistoricalRecord{}}
}

func (m *MemoryStore) Fetch(ctx context.Context, key string) ([]types.HistoricalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.recs[key]), nil
}

func (m *MemoryStore) Append(ctx context.Context, key string, rec types.HistoricalRecord) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if containsID(m.recs[key], rec.ID) {
		return nil
	}
	m.recs[key] = append(m.recs[key], cloneRecord(rec))
	return nil
}

func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.recs))
	for k, recs := range m.recs {
		if len(recs) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func containsID(recs []types.HistoricalRecord, id string) bool {
	if id == "" {
		return false
	}
	for _, r := range recs {
		if r.ID == id {
			return true
		}
	}
	return false
}

// chronological sorts by timestamp, keeping insertion order for equal times.
func chronological(recs []types.HistoricalRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
}

func cloneRecords(in []types.HistoricalRecord) []types.HistoricalRecord {
	out := make([]types.HistoricalRecord, 0, len(in))
	for _, r := range in {
		out = append(out, cloneRecord(r))
	}
	chronological(out)
	return out
}

func cloneRecord(r types.HistoricalRecord) types.HistoricalRecord {
	r.Speakers = append([]types.SpeakerSnapshot(nil), r.Speakers...)
	r.Structure = append([]types.Turn(nil), r.Structure...)
	return r
}
