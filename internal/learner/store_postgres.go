package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pim/internal/shared"
)

const dbTimeout = 5 * time.Second

const selectLearner = `SELECT username, schema_version, full_name, age, gender, city, course_id, progress, grades
FROM learners`

// PostgresStore is a PostgreSQL-backed Store. Each user is one row of the
// learners table; progress and grades are JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool. The learners table is created by the
// database migrations.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, username string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	key := NormalizeUsername(username)
	u, err := scanLearner(s.pool.QueryRow(ctx, selectLearner+` WHERE username = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", key, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", key, err)
	}
	return u, nil
}

// Save upserts the full record in one transaction. Cancellation of ctx does
// not interrupt a save that has started.
func (s *PostgresStore) Save(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dbTimeout)
	defer cancel()

	if u.Username == "" {
		return fmt.Errorf("username is required")
	}

	r := u.ToRecord()
	progress, err := json.Marshal(r.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	grades, err := json.Marshal(r.Grades)
	if err != nil {
		return fmt.Errorf("encode grades: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO learners (username, schema_version, full_name, age, gender, city, course_id, progress, grades, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, NOW())
			 ON CONFLICT (username) DO UPDATE SET
			   schema_version = EXCLUDED.schema_version,
			   full_name      = EXCLUDED.full_name,
			   age            = EXCLUDED.age,
			   gender         = EXCLUDED.gender,
			   city           = EXCLUDED.city,
			   course_id      = EXCLUDED.course_id,
			   progress       = EXCLUDED.progress,
			   grades         = EXCLUDED.grades,
			   updated_at     = NOW()`,
			r.Username,
			r.SchemaVersion,
			r.FullName,
			r.Age,
			nullIfEmpty(string(r.Gender)),
			nullIfEmpty(r.City),
			r.CourseID,
			string(progress),
			string(grades),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save user %q: %w", r.Username, err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, username string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM learners WHERE username = $1)`,
		NormalizeUsername(username),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, selectLearner+` ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("query learners: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanLearner(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate learners: %w", err)
	}
	return users, nil
}

func scanLearner(row pgx.Row) (*User, error) {
	var r Record
	var gender, city, courseID *string
	var progress, grades []byte

	if err := row.Scan(
		&r.Username,
		&r.SchemaVersion,
		&r.FullName,
		&r.Age,
		&gender,
		&city,
		&courseID,
		&progress,
		&grades,
	); err != nil {
		return nil, err
	}
	if gender != nil {
		r.Gender = Gender(*gender)
	}
	if city != nil {
		r.City = *city
	}
	r.CourseID = courseID

	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &r.Progress); err != nil {
			return nil, fmt.Errorf("user %q progress: %w: %v", r.Username, shared.ErrDataCorruption, err)
		}
	}
	if len(grades) > 0 {
		if err := json.Unmarshal(grades, &r.Grades); err != nil {
			return nil, fmt.Errorf("user %q grades: %w: %v", r.Username, shared.ErrDataCorruption, err)
		}
	}
	return FromRecord(r)
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
