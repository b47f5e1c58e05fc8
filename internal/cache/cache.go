package cache

import (
	"context"
	"sort"
	"sync"
)

// Set holds the ids of emails that a previous run already handled.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewSet(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	s.Add(ids...)
	return s
}

func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Add(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		s.ids[id] = struct{}{}
	}
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the members sorted, so that persisted files are stable.
func (s *Set) IDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Store persists the processed set. Commit must be durable before it
// returns, so an id is only ever recorded after its tracker write succeeded.
type Store interface {
	Load(ctx context.Context) (*Set, error)
	Commit(ctx context.Context, ids ...string) error
}

// MemoryStore keeps the set in process. Used by dry runs and tests.
type MemoryStore struct {
	set *Set
}

func NewMemoryStore(ids ...string) *MemoryStore {
	return &MemoryStore{set: NewSet(ids...)}
}

func (m *MemoryStore) Load(context.Context) (*Set, error) {
	return NewSet(m.set.IDs()...), nil
}

func (m *MemoryStore) Commit(_ context.Context, ids ...string) error {
	m.set.Add(ids...)
	return nil
}
