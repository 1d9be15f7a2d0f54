package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// PostgresStore persists users, sessions and resumes in PostgreSQL. Lists and
// session context are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
	// db shares pool; it exists for the migration runner.
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := Migrate(ctx, db, goose.DialectPostgres); err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, db: db}, nil
}

const pgUserColumns = `id, name, education_level, education_stream, skills, work_experience, location,
	location_preference, job_type_preference, preferred_language, discovery_step, profile_complete,
	created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p = nonNilProfile(p)

	skills, work, err := encodeProfileLists(p)
	if err != nil {
		return profile.Profile{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (`+pgUserColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Name, p.EducationLevel, p.EducationStream, skills, work, p.Location,
		p.LocationPreference, p.JobTypePreference, p.PreferredLanguage, p.DiscoveryStep, p.ProfileComplete,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("insert user: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (profile.Profile, error) {
	var (
		p            profile.Profile
		skills, work []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id=$1`, id).Scan(
		&p.ID, &p.Name, &p.EducationLevel, &p.EducationStream, &skills, &work, &p.Location,
		&p.LocationPreference, &p.JobTypePreference, &p.PreferredLanguage, &p.DiscoveryStep, &p.ProfileComplete,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("query user: %w", err)
	}
	if err := decodeProfileLists(&p, skills, work); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, p profile.Profile) error {
	p = nonNilProfile(p)
	skills, work, err := encodeProfileLists(p)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET name=$2, education_level=$3, education_stream=$4, skills=$5, work_experience=$6,
		 location=$7, location_preference=$8, job_type_preference=$9, preferred_language=$10,
		 discovery_step=$11, profile_complete=$12, updated_at=$13
		 WHERE id=$1`,
		p.ID, p.Name, p.EducationLevel, p.EducationStream, skills, work,
		p.Location, p.LocationPreference, p.JobTypePreference, p.PreferredLanguage,
		p.DiscoveryStep, p.ProfileComplete, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string, state session.State) (session.Session, error) {
	sess := newSession(uuid.NewString(), userID, state, time.Now().UTC())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, current_state, messages, context, started_at, last_active_at)
		 VALUES ($1, $2, $3, '[]'::jsonb, '{}'::jsonb, $4, $5)`,
		sess.ID, sess.UserID, string(sess.CurrentState), sess.StartedAt, sess.LastActiveAt,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

const pgSessionColumns = `id, user_id, current_state, messages, context, started_at, last_active_at`

func (s *PostgresStore) GetSession(ctx context.Context, id string) (session.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx, `SELECT `+pgSessionColumns+` FROM sessions WHERE id=$1`, id))
}

func (s *PostgresStore) LatestSession(ctx context.Context, userID string) (session.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions WHERE user_id=$1 ORDER BY started_at DESC LIMIT 1`, userID))
}

func (s *PostgresStore) scanSession(row pgx.Row) (session.Session, error) {
	var (
		sess          session.Session
		state         string
		turns, sesCtx []byte
	)
	err := row.Scan(&sess.ID, &sess.UserID, &state, &turns, &sesCtx, &sess.StartedAt, &sess.LastActiveAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("query session: %w", err)
	}
	sess.CurrentState = session.ParseState(state)
	if err := decodeSessionBlobs(&sess, turns, sesCtx); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess session.Session) error {
	turns, sesCtx, err := encodeSessionBlobs(sess)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET current_state=$2, messages=$3, context=$4, last_active_at=$5 WHERE id=$1`,
		sess.ID, string(sess.CurrentState), turns, sesCtx, sess.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateResume(ctx context.Context, r Resume) (Resume, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	if len(r.Data) == 0 {
		r.Data = json.RawMessage(`{}`)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resumes (id, user_id, session_id, resume_data, generated_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.UserID, r.SessionID, r.Data, r.GeneratedAt,
	)
	if err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) LatestResume(ctx context.Context, userID string) (Resume, error) {
	var (
		r    Resume
		data []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, resume_data, generated_at FROM resumes
		 WHERE user_id=$1 ORDER BY generated_at DESC LIMIT 1`, userID,
	).Scan(&r.ID, &r.UserID, &r.SessionID, &data, &r.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	if err != nil {
		return Resume{}, fmt.Errorf("query resume: %w", err)
	}
	r.Data = json.RawMessage(data)
	return r, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}
