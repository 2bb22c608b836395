package store

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is a ChallengeStore that keeps challenges for the life of the
// process. Used when no database path is configured.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  []Challenge
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) RecordChallenge(c *Challenge) error {
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	m.items = append(m.items, *c)
	return nil
}

func (m *MemoryStore) LatestChallenge() (*Challenge, error) {
	list, _ := m.ListChallenges(1)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func (m *MemoryStore) ListChallenges(limit int) ([]Challenge, error) {
	m.mu.Lock()
	out := make([]Challenge, len(m.items))
	copy(out, m.items)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Cleanup(before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.items[:0]
	var removed int64
	for _, c := range m.items {
		if c.ReceivedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.items = kept
	return removed, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
