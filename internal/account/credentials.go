package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/platform/jsonfile"
	"github.com/p-n-ai/pim/internal/shared"
)

// Credentials stores password hashes keyed by case-folded username. It never
// sees plain passwords.
type Credentials interface {
	Exists(ctx context.Context, username string) (bool, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	SetPasswordHash(ctx context.Context, username, hash string) error
	// DeletePasswordHash removes the entry. A missing entry is not an error.
	DeletePasswordHash(ctx context.Context, username string) error
}

// MemoryCredentials is an in-memory Credentials store for tests.
type MemoryCredentials struct {
	mu     sync.RWMutex
	hashes map[string]string
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{hashes: make(map[string]string)}
}

func (c *MemoryCredentials) Exists(_ context.Context, username string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[learner.NormalizeUsername(username)]
	return ok, nil
}

func (c *MemoryCredentials) PasswordHash(_ context.Context, username string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.hashes[learner.NormalizeUsername(username)]
	if !ok {
		return "", fmt.Errorf("credentials for %q: %w", username, shared.ErrNotFound)
	}
	return h, nil
}

func (c *MemoryCredentials) SetPasswordHash(_ context.Context, username, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashes[learner.NormalizeUsername(username)] = hash
	return nil
}

func (c *MemoryCredentials) DeletePasswordHash(_ context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hashes, learner.NormalizeUsername(username))
	return nil
}

type loginRecord struct {
	PasswordHash string `json:"password_hash"`
}

// FileCredentials keeps hashes in a JSON file, one entry per username.
type FileCredentials struct {
	file *jsonfile.File
}

func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{file: jsonfile.New(path)}
}

func (c *FileCredentials) Exists(_ context.Context, username string) (bool, error) {
	_, ok, err := c.file.Get(learner.NormalizeUsername(username))
	return ok, err
}

func (c *FileCredentials) PasswordHash(_ context.Context, username string) (string, error) {
	key := learner.NormalizeUsername(username)
	var rec loginRecord
	ok, err := c.file.Decode(key, &rec)
	if err != nil {
		return "", fmt.Errorf("credentials for %q: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("credentials for %q: %w", key, shared.ErrNotFound)
	}
	if rec.PasswordHash == "" {
		return "", fmt.Errorf("credentials for %q have no hash: %w", key, shared.ErrDataCorruption)
	}
	return rec.PasswordHash, nil
}

func (c *FileCredentials) SetPasswordHash(_ context.Context, username, hash string) error {
	key := learner.NormalizeUsername(username)
	if err := c.file.Put(key, loginRecord{PasswordHash: hash}); err != nil {
		return fmt.Errorf("save credentials for %q: %w", key, err)
	}
	return nil
}

func (c *FileCredentials) DeletePasswordHash(_ context.Context, username string) error {
	key := learner.NormalizeUsername(username)
	if err := c.file.Delete(key); err != nil {
		return fmt.Errorf("delete credentials for %q: %w", key, err)
	}
	return nil
}
