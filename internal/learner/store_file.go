package learner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/p-n-ai/pim/internal/platform/jsonfile"
	"github.com/p-n-ai/pim/internal/shared"
)

// FileStore keeps every user in one JSON file keyed by username.
type FileStore struct {
	file *jsonfile.File
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{file: jsonfile.New(path)}
}

func (s *FileStore) Load(_ context.Context, username string) (*User, error) {
	key := NormalizeUsername(username)
	raw, ok, err := s.file.Get(key)
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("user %q: %w", key, shared.ErrNotFound)
	}

	u, err := Decode(raw)
	if err != nil {
		slog.Error("user record does not decode", "username", key, "path", s.file.Path(), "error", err)
		return nil, fmt.Errorf("load user %q: %w", key, err)
	}
	return u, nil
}

// Save rewrites the file with u's record replacing the previous one. The
// write is not abandoned when ctx is cancelled.
func (s *FileStore) Save(_ context.Context, u *User) error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if err := s.file.Put(u.Username, u.ToRecord()); err != nil {
		return fmt.Errorf("save user %q: %w", u.Username, err)
	}
	return nil
}

func (s *FileStore) Exists(_ context.Context, username string) (bool, error) {
	_, ok, err := s.file.Get(NormalizeUsername(username))
	return ok, err
}

// List decodes every record. Undecodable records are logged and skipped so a
// single bad entry does not hide the rest.
func (s *FileStore) List(_ context.Context) ([]*User, error) {
	entries, err := s.file.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*User, 0, len(entries))
	for key, raw := range entries {
		u, err := Decode(raw)
		if err != nil {
			slog.Error("skipping undecodable user record", "username", key, "error", err)
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
