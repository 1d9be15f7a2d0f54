package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sahaj-careers/sahaj/internal/profile"
	"github.com/sahaj-careers/sahaj/internal/session"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	u, err := s.CreateUser(ctx, profile.Profile{Name: "Asha", PreferredLanguage: "hi-IN"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" || u.Skills == nil || u.WorkExperience == nil {
		t.Fatalf("CreateUser() = %+v", u)
	}

	u.Skills = []string{"cooking", "driving"}
	u.WorkExperience = []profile.WorkExperience{{Role: "cook", Years: 2}}
	u.DiscoveryStep = 3
	u.ProfileComplete = true
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Name != "Asha" || len(got.Skills) != 2 || got.WorkExperience[0].Role != "cook" || got.DiscoveryStep != 3 || !got.ProfileComplete {
		t.Fatalf("GetUser() = %+v", got)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateUser(ctx, profile.Profile{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateUser(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.LatestSession(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestSession() error = %v, want ErrNotFound", err)
	}
	first, err := s.CreateSession(ctx, u.ID, session.StateGreeting)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateSession(ctx, u.ID, session.StateGreeting)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	latest, err := s.LatestSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("LatestSession() error = %v", err)
	}
	if latest.ID != second.ID || latest.ID == first.ID {
		t.Fatalf("LatestSession() = %s, want %s", latest.ID, second.ID)
	}
	if latest.CurrentState != session.StateGreeting || latest.Turns == nil {
		t.Fatalf("LatestSession() = %+v", latest)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	latest.CurrentState = session.StateInterview
	latest.Turns = append(latest.Turns,
		session.Turn{Role: session.RoleUser, Content: "hi", Timestamp: now},
		session.Turn{Role: session.RoleAssistant, Content: "hello", Timestamp: now},
	)
	latest.Context.JobRole = "cook"
	latest.Context.InterviewStage = 2
	latest.Context.Jobs = []json.RawMessage{json.RawMessage(`{"title":"Line Cook"}`)}
	latest.LastActiveAt = now
	if err := s.UpdateSession(ctx, latest); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}
	stored, err := s.GetSession(ctx, latest.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.CurrentState != session.StateInterview || len(stored.Turns) != 2 || stored.Turns[1].Content != "hello" {
		t.Fatalf("GetSession() = %+v", stored)
	}
	if stored.Context.JobRole != "cook" || stored.Context.InterviewStage != 2 || len(stored.Context.Jobs) != 1 {
		t.Fatalf("GetSession() context = %+v", stored.Context)
	}
	if !stored.LastActiveAt.Equal(now) {
		t.Fatalf("LastActiveAt = %v, want %v", stored.LastActiveAt, now)
	}
	if err := s.UpdateSession(ctx, session.Session{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateSession(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.LatestResume(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestResume() error = %v, want ErrNotFound", err)
	}
	if _, err := s.CreateResume(ctx, Resume{UserID: u.ID, SessionID: latest.ID, Data: json.RawMessage(`{"name":"Asha"}`)}); err != nil {
		t.Fatalf("CreateResume() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.CreateResume(ctx, Resume{UserID: u.ID, Data: json.RawMessage(`{"name":"Asha K"}`)}); err != nil {
		t.Fatalf("CreateResume() error = %v", err)
	}
	r, err := s.LatestResume(ctx, u.ID)
	if err != nil {
		t.Fatalf("LatestResume() error = %v", err)
	}
	var data map[string]string
	if err := json.Unmarshal(r.Data, &data); err != nil || data["name"] != "Asha K" {
		t.Fatalf("LatestResume() data = %s (%v)", r.Data, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreDoesNotAliasRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, err := s.CreateUser(ctx, profile.Profile{Skills: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	u.Skills[0] = "mutated"
	got, _ := s.GetUser(ctx, u.ID)
	if got.Skills[0] != "a" {
		t.Fatalf("stored profile was mutated through returned value")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sahaj.db")
	s, err := NewSQLiteStore(context.Background(), "sqlite:"+path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	// Reopening applies no migrations twice.
	s2, err := NewSQLiteStore(context.Background(), "sqlite:"+path)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore() error = %v", err)
	}
	_ = s2.Close()
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestNewPicksBackend(t *testing.T) {
	s, kind, err := New(context.Background(), "")
	if err != nil || kind != "memory" {
		t.Fatalf("New(\"\") = %q, %v", kind, err)
	}
	_ = s.Close()

	s, kind, err = New(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "x.db"))
	if err != nil || kind != "sqlite" {
		t.Fatalf("New(sqlite) = %q, %v", kind, err)
	}
	_ = s.Close()

	if _, _, err := New(context.Background(), "mysql://nope"); err == nil {
		t.Fatalf("New(mysql) expected error")
	}
}

func TestSQLitePath(t *testing.T) {
	cases := map[string]string{
		"sqlite:/tmp/a.db":     "/tmp/a.db",
		"sqlite:///tmp/a.db":   "/tmp/a.db",
		"file:/tmp/a.db?x=1":   "file:/tmp/a.db?x=1",
		"  sqlite:data/x.db  ": "data/x.db",
	}
	for in, want := range cases {
		if got := sqlitePath(in); got != want {
			t.Fatalf("sqlitePath(%q) = %q, want %q", in, got, want)
		}
	}
}
