package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// SQLiteStore persists records in a single SQLite file. Timestamps are
// stored as unix milliseconds and JSON values as TEXT.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database named by dsn ("sqlite:path",
// "sqlite://path" or a "file:" URI) and applies migrations.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	path := sqlitePath(dsn)
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db, goose.DialectSQLite3); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func sqlitePath(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return strings.TrimPrefix(dsn, "sqlite:")
	default:
		return dsn
	}
}

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

const sqliteUserColumns = `id, name, education_level, education_stream, skills, work_experience, location,
	location_preference, job_type_preference, preferred_language, discovery_step, profile_complete,
	created_at, updated_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p = nonNilProfile(p)

	skills, work, err := encodeProfileLists(p)
	if err != nil {
		return profile.Profile{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.EducationLevel, p.EducationStream, string(skills), string(work), p.Location,
		p.LocationPreference, p.JobTypePreference, p.PreferredLanguage, p.DiscoveryStep, p.ProfileComplete,
		millis(p.CreatedAt), millis(p.UpdatedAt),
	)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("insert user: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (profile.Profile, error) {
	var (
		p                profile.Profile
		skills, work     string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.EducationLevel, &p.EducationStream, &skills, &work, &p.Location,
		&p.LocationPreference, &p.JobTypePreference, &p.PreferredLanguage, &p.DiscoveryStep, &p.ProfileComplete,
		&created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("scan user row: %w", err)
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	if err := decodeProfileLists(&p, []byte(skills), []byte(work)); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, p profile.Profile) error {
	p = nonNilProfile(p)
	skills, work, err := encodeProfileLists(p)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, education_level = ?, education_stream = ?, skills = ?, work_experience = ?,
		 location = ?, location_preference = ?, job_type_preference = ?, preferred_language = ?,
		 discovery_step = ?, profile_complete = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.EducationLevel, p.EducationStream, string(skills), string(work),
		p.Location, p.LocationPreference, p.JobTypePreference, p.PreferredLanguage,
		p.DiscoveryStep, p.ProfileComplete, millis(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, state session.State) (session.Session, error) {
	sess := newSession(uuid.NewString(), userID, state, time.Now().UTC().Truncate(time.Millisecond))
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, current_state, messages, context, started_at, last_active_at)
		 VALUES (?, ?, ?, '[]', '{}', ?, ?)`,
		sess.ID, sess.UserID, string(sess.CurrentState), millis(sess.StartedAt), millis(sess.LastActiveAt),
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

const sqliteSessionColumns = `id, user_id, current_state, messages, context, started_at, last_active_at`

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (session.Session, error) {
	return scanSQLiteSession(s.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sessions WHERE id = ?`, id))
}

func (s *SQLiteStore) LatestSession(ctx context.Context, userID string) (session.Session, error) {
	return scanSQLiteSession(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions WHERE user_id = ?
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`, userID))
}

func scanSQLiteSession(row *sql.Row) (session.Session, error) {
	var (
		sess                session.Session
		state, turns, blob  string
		started, lastActive int64
	)
	err := row.Scan(&sess.ID, &sess.UserID, &state, &turns, &blob, &started, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("scan session row: %w", err)
	}
	sess.CurrentState = session.ParseState(state)
	sess.StartedAt = fromMillis(started)
	sess.LastActiveAt = fromMillis(lastActive)
	if err := decodeSessionBlobs(&sess, []byte(turns), []byte(blob)); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess session.Session) error {
	turns, sesCtx, err := encodeSessionBlobs(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET current_state = ?, messages = ?, context = ?, last_active_at = ? WHERE id = ?`,
		string(sess.CurrentState), string(turns), string(sesCtx), millis(sess.LastActiveAt), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) CreateResume(ctx context.Context, r Resume) (Resume, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if len(r.Data) == 0 {
		r.Data = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, user_id, session_id, resume_data, generated_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.SessionID, string(r.Data), millis(r.GeneratedAt),
	)
	if err != nil {
		return Resume{}, fmt.Errorf("insert resume: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) LatestResume(ctx context.Context, userID string) (Resume, error) {
	var (
		r         Resume
		data      string
		generated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, resume_data, generated_at FROM resumes
		 WHERE user_id = ? ORDER BY generated_at DESC, rowid DESC LIMIT 1`, userID,
	).Scan(&r.ID, &r.UserID, &r.SessionID, &data, &generated)
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	if err != nil {
		return Resume{}, fmt.Errorf("scan resume row: %w", err)
	}
	r.Data = json.RawMessage(data)
	r.GeneratedAt = fromMillis(generated)
	return r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
