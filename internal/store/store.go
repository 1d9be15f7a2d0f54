package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// Resume is a captured resume draft. Rendering happens elsewhere.
type Resume struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	SessionID   string          `json:"session_id,omitempty"`
	Data        json.RawMessage `json:"resume_data"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Users persists career profiles. A user is identified by Profile.ID.
type Users interface {
	CreateUser(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetUser(ctx context.Context, id string) (profile.Profile, error)
	UpdateUser(ctx context.Context, p profile.Profile) error
}

// Sessions persists dialogue sessions. Updates replace the whole record.
type Sessions interface {
	CreateSession(ctx context.Context, userID string, state session.State) (session.Session, error)
	GetSession(ctx context.Context, id string) (session.Session, error)
	// LatestSession returns the most recently started session for userID.
	LatestSession(ctx context.Context, userID string) (session.Session, error)
	UpdateSession(ctx context.Context, s session.Session) error
}

// Resumes persists resume drafts.
type Resumes interface {
	CreateResume(ctx context.Context, r Resume) (Resume, error)
	LatestResume(ctx context.Context, userID string) (Resume, error)
}

// Store is the full persistence surface.
type Store interface {
	Users
	Sessions
	Resumes
	Ping(ctx context.Context) error
	Close() error
}

// New picks a backend from databaseURL: empty means in-memory, a postgres
// URL means PostgreSQL, and a sqlite: or file: prefix means SQLite.
func New(ctx context.Context, databaseURL string) (Store, string, error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case url == "":
		return NewMemoryStore(), "memory", nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		s, err := NewPostgresStore(ctx, url)
		return s, "postgres", err
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"):
		s, err := NewSQLiteStore(ctx, url)
		return s, "sqlite", err
	default:
		return nil, "", errors.New("unsupported DATABASE_URL scheme (expected postgres://, sqlite: or file:)")
	}
}

func newSession(id, userID string, state session.State, now time.Time) session.Session {
	return session.Session{
		ID:           id,
		UserID:       userID,
		CurrentState: state,
		Turns:        []session.Turn{},
		StartedAt:    now,
		LastActiveAt: now,
	}
}

func nonNilProfile(p profile.Profile) profile.Profile {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.WorkExperience == nil {
		p.WorkExperience = []profile.WorkExperience{}
	}
	return p
}
