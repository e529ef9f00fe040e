// Package account registers learners and checks their passwords. Hashing is
// bcrypt; the learner record and the password hash live in separate stores.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

// ErrWrongPassword is returned by Login when the password does not match.
var ErrWrongPassword = errors.New("wrong password")

// Registration is what a new user types in.
type Registration struct {
	learner.Profile
	Password string
	Confirm  string
}

// Service ties the credential store to the learner store.
type Service struct {
	creds Credentials
	users learner.Store
	cost  int
}

// NewService creates a service. cost <= 0 uses bcrypt.DefaultCost.
func NewService(creds Credentials, users learner.Store, cost int) *Service {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{creds: creds, users: users, cost: cost}
}

// Exists reports whether the username is taken in either store.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	ok, err := s.creds.Exists(ctx, username)
	if err != nil || ok {
		return ok, err
	}
	return s.users.Exists(ctx, username)
}

// Register validates the registration, then stores the password hash and
// the learner record. When the second write fails the first is undone.
func (s *Service) Register(ctx context.Context, r Registration) (*learner.User, error) {
	u, err := learner.New(r.Profile)
	if err != nil {
		return nil, err
	}
	if r.Password == "" {
		return nil, fmt.Errorf("password is required: %w", shared.ErrValidation)
	}
	if r.Password != r.Confirm {
		return nil, fmt.Errorf("passwords do not match: %w", shared.ErrValidation)
	}

	taken, err := s.Exists(ctx, u.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("user %q: %w", u.Username, shared.ErrAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w: %v", shared.ErrValidation, err)
	}

	// Credentials are undone if the learner record cannot be written.
	if err := s.creds.SetPasswordHash(ctx, u.Username, string(hash)); err != nil {
		return nil, fmt.Errorf("save password: %w", err)
	}
	if err := s.users.Save(ctx, u); err != nil {
		if derr := s.creds.DeletePasswordHash(ctx, u.Username); derr != nil {
			slog.Error("failed to remove credentials of unsaved user", "username", u.Username, "error", derr)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	slog.Info("user registered", "username", u.Username, "age", u.Age)
	return u, nil
}

// Login checks the password and loads the learner record.
func (s *Service) Login(ctx context.Context, username, password string) (*learner.User, error) {
	key := learner.NormalizeUsername(username)
	hash, err := s.creds.PasswordHash(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			slog.Info("login rejected", "username", key)
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("credentials for %q: %w: %v", key, shared.ErrDataCorruption, err)
	}

	u, err := s.users.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	slog.Info("user logged in", "username", key)
	return u, nil
}
