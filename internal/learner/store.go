package learner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/p-n-ai/pim/internal/shared"
)

// Store persists user records keyed by username. Save overwrites the whole
// record of that user. Concurrent sessions for the same username are not
// supported; the last write wins.
type Store interface {
	Load(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, u *User) error
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]*User, error)
}

// Refresh re-reads the user's record and applies it to u in place, picking up
// changes written by another process.
func Refresh(ctx context.Context, s Store, u *User) error {
	fresh, err := s.Load(ctx, u.Username)
	if err != nil {
		return fmt.Errorf("refresh user %q: %w", u.Username, err)
	}
	u.apply(fresh)
	return nil
}

// MemoryStore is an in-memory Store. Records are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Load(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[NormalizeUsername(username)]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", username, shared.ErrNotFound)
	}
	return FromRecord(r)
}

func (s *MemoryStore) Save(_ context.Context, u *User) error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[u.Username] = u.ToRecord()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[NormalizeUsername(username)]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.records))
	for _, r := range s.records {
		u, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
