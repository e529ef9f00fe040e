package learner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/shared"
)

func storeFactories(t *testing.T) map[string]func() learner.Store {
	t.Helper()
	return map[string]func() learner.Store{
		"memory": func() learner.Store { return learner.NewMemoryStore() },
		"file": func() learner.Store {
			return learner.NewFileStore(filepath.Join(t.TempDir(), "users.json"))
		},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			u := sampleUser(t)
			u.Enroll("ads")
			u.SetCursor("prog", learner.Lesson("prog-001a"))
			require.NoError(t, s.Save(ctx, u))

			got, err := s.Load(ctx, "ANA")
			require.NoError(t, err)
			assert.Equal(t, u.ToRecord(), got.ToRecord())

			exists, err := s.Exists(ctx, " Ana ")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = s.Exists(ctx, "bia")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newStore().Load(context.Background(), "nobody")
			assert.True(t, shared.IsNotFound(err), "Load() error = %v", err)
		})
	}
}

func TestStore_SaveOverwritesWholeRecord(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			u := sampleUser(t)
			u.SetCursor("prog", learner.Lesson("prog-001a"))
			u.SetGrade("alg", 1)
			require.NoError(t, s.Save(ctx, u))

			u.SetCursor("prog", learner.Assessment())
			u.ClearGrade("alg")
			require.NoError(t, s.Save(ctx, u))

			got, err := s.Load(ctx, u.Username)
			require.NoError(t, err)
			c, _ := got.Cursor("prog")
			assert.Equal(t, learner.Assessment(), c)
			_, graded := got.Grade("alg")
			assert.False(t, graded)
		})
	}
}

func TestStore_List(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			for _, username := range []string{"carla", "ana", "bia"} {
				u, err := learner.New(learner.Profile{Username: username, FullName: username, Age: 20})
				require.NoError(t, err)
				require.NoError(t, s.Save(ctx, u))
			}

			users, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, users, 3)
			assert.Equal(t, "ana", users[0].Username)
			assert.Equal(t, "bia", users[1].Username)
			assert.Equal(t, "carla", users[2].Username)
		})
	}
}

func TestStore_ReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := learner.NewMemoryStore()

	u := sampleUser(t)
	require.NoError(t, s.Save(ctx, u))
	u.SetCursor("prog", learner.Done())

	got, err := s.Load(ctx, u.Username)
	require.NoError(t, err)
	_, ok := got.Cursor("prog")
	assert.False(t, ok, "mutating after Save must not reach the store")
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	s := learner.NewMemoryStore()

	u := sampleUser(t)
	require.NoError(t, s.Save(ctx, u))

	other, err := s.Load(ctx, u.Username)
	require.NoError(t, err)
	other.SetCursor("prog", learner.Assessment())
	require.NoError(t, s.Save(ctx, other))

	require.NoError(t, learner.Refresh(ctx, s, u))
	c, ok := u.Cursor("prog")
	require.True(t, ok)
	assert.Equal(t, learner.Assessment(), c)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	content := `{
		"ana": {"username": "ana", "full_name": "Ana", "age": 20, "progress": {"prog": "prog-001a#"}},
		"bia": {"username": "bia", "full_name": "Bia", "age": 21}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s := learner.NewFileStore(path)

	_, err := s.Load(ctx, "ana")
	assert.True(t, shared.IsDataCorruption(err), "Load() error = %v", err)

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bia", users[0].Username)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	u := sampleUser(t)
	u.SetCursor("prog", learner.Done())
	u.SetGrade("prog", 0.5)
	require.NoError(t, learner.NewFileStore(path).Save(ctx, u))

	got, err := learner.NewFileStore(path).Load(ctx, u.Username)
	require.NoError(t, err)
	g, ok := got.Grade("prog")
	require.True(t, ok)
	assert.Equal(t, 0.5, g)
}
