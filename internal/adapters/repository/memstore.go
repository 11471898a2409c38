package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/metrics"
)

// Snapshot is an immutable published leaderboard.
type Snapshot struct {
	Entries     []model.LeaderboardEntry
	ByName      map[string]int // normalized name -> index into Entries
	PublishedAt time.Time
}

// MemoryStore is an in-memory Store. Table writes take a lock; leaderboard
// reads go through an atomically swapped Snapshot and never block.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[model.MetricKind]StoredTable

	snapshot atomic.Pointer[Snapshot]
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		tables: make(map[model.MetricKind]StoredTable),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{ByName: map[string]int{}})
	return s
}

// PutTable implements Store.PutTable.
func (s *MemoryStore) PutTable(_ context.Context, t StoredTable) error {
	if t.Kind == "" {
		metrics.RecordErrorByComponent("repository", "invalid_table")
		return fmt.Errorf("%w: empty metric kind", ErrInvalidTable)
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	t.Records = slices.Clone(t.Records)

	s.mu.Lock()
	if prev, ok := s.tables[t.Kind]; ok && t.Seq < prev.Seq {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s upload %d is older than %d", ErrStale, t.Kind, t.Seq, prev.Seq)
	}
	s.tables[t.Kind] = t
	s.mu.Unlock()

	metrics.UpdateTableRows(string(t.Kind), len(t.Records))
	return nil
}

// Table implements Store.Table.
func (s *MemoryStore) Table(_ context.Context, kind model.MetricKind) (StoredTable, error) {
	s.mu.RLock()
	t, ok := s.tables[kind]
	s.mu.RUnlock()
	if !ok {
		return StoredTable{}, fmt.Errorf("%w: table %s", ErrNotFound, kind)
	}
	t.Records = slices.Clone(t.Records)
	return t, nil
}

// Tables implements Store.Tables.
func (s *MemoryStore) Tables(_ context.Context) []StoredTable {
	s.mu.RLock()
	out := make([]StoredTable, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b StoredTable) int { return strings.Compare(string(a.Kind), string(b.Kind)) })
	return out
}

// PublishLeaderboard implements Store.PublishLeaderboard.
func (s *MemoryStore) PublishLeaderboard(_ context.Context, entries []model.LeaderboardEntry) {
	snap := &Snapshot{
		Entries:     slices.Clone(entries),
		ByName:      make(map[string]int, len(entries)),
		PublishedAt: s.now(),
	}
	for i, e := range snap.Entries {
		// Names differing only in case resolve to the better-ranked entry.
		if _, taken := snap.ByName[normalizeName(e.CanonicalName)]; !taken {
			snap.ByName[normalizeName(e.CanonicalName)] = i
		}
	}
	s.snapshot.Store(snap)
	metrics.UpdateLeaderboardSize(len(entries))
}

// TopN implements Store.TopN.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	entries := s.snapshot.Load().Entries
	n = min(n, len(entries))
	return slices.Clone(entries[:n]), nil
}

// Rank implements Store.Rank.
func (s *MemoryStore) Rank(_ context.Context, name string) (model.LeaderboardEntry, error) {
	snap := s.snapshot.Load()
	i, ok := snap.ByName[normalizeName(name)]
	if !ok {
		return model.LeaderboardEntry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return snap.Entries[i], nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	return len(s.snapshot.Load().Entries)
}

// PublishedAt implements Store.PublishedAt.
func (s *MemoryStore) PublishedAt(_ context.Context) time.Time {
	return s.snapshot.Load().PublishedAt
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
