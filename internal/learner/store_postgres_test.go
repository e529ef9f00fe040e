package learner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pim/internal/learner"
	"github.com/p-n-ai/pim/internal/platform/database"
	"github.com/p-n-ai/pim/internal/shared"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pim"),
		postgres.WithUsername("pim"),
		postgres.WithPassword("pim"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(ctx, database.Options{URL: dsn, MaxConns: 4, Migrate: true})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestPostgresStore(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	s, err := learner.NewPostgresStore(db.Pool)
	require.NoError(t, err)

	_, err = s.Load(ctx, "ana")
	assert.True(t, shared.IsNotFound(err), "Load() error = %v", err)

	u := sampleUser(t)
	u.Enroll("ads")
	u.SetCursor("prog", learner.Lesson("prog-002a"))
	u.SetCursor("alg", learner.Done())
	u.SetGrade("alg", 0.667)
	require.NoError(t, s.Save(ctx, u))

	got, err := s.Load(ctx, "ANA")
	require.NoError(t, err)
	assert.Equal(t, u.ToRecord(), got.ToRecord())

	u.SetCursor("prog", learner.Assessment())
	require.NoError(t, s.Save(ctx, u))

	exists, err := s.Exists(ctx, "ana")
	require.NoError(t, err)
	assert.True(t, exists)

	bia, err := learner.New(learner.Profile{Username: "bia", FullName: "Bia", Age: 30})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, bia))

	users, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ana", users[0].Username)
	c, _ := users[0].Cursor("prog")
	assert.Equal(t, learner.Assessment(), c)
	assert.False(t, users[1].Enrolled())
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	_, err := learner.NewPostgresStore(nil)
	assert.Error(t, err)
}
