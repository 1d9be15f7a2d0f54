package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionBusy is returned when another connection already drives the
// user's session.
var ErrSessionBusy = errors.New("session already attached to another connection")

// Attachment is a live connection. SessionID is empty until the connection
// has loaded its session.
type Attachment struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	AttachedAt     time.Time `json:"attached_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	cancel context.CancelFunc
}

// Manager keeps at most one live connection per user, and therefore per
// session, and closes connections that stay idle past the inactivity
// timeout. The claim is taken before the session is read so a second
// connection can never work from a stale copy.
type Manager struct {
	mu                sync.Mutex
	attached          map[string]*Attachment
	inactivityTimeout time.Duration
	onExpire          func(Attachment)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		attached:          make(map[string]*Attachment),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(Attachment)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Attach claims userID for one connection. cancel is invoked if the
// connection is expired for inactivity. The returned release func must be
// called when the connection ends.
func (m *Manager) Attach(userID string, cancel context.CancelFunc) (func(), error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.attached[userID]; busy {
		return nil, ErrSessionBusy
	}
	a := &Attachment{
		UserID:         userID,
		AttachedAt:     now,
		LastActivityAt: now,
		cancel:         cancel,
	}
	m.attached[userID] = a

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if cur, ok := m.attached[userID]; ok && cur == a {
				delete(m.attached, userID)
			}
		})
	}, nil
}

// Bind records the session the user's connection is driving.
func (m *Manager) Bind(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attached[userID]; ok {
		a.SessionID = sessionID
	}
}

func (m *Manager) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attached[userID]; ok {
		a.LastActivityAt = time.Now().UTC()
	}
}

func (m *Manager) IsAttached(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.attached[userID]
	return ok
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attached)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Attachment

	m.mu.Lock()
	for id, a := range m.attached {
		if now.Sub(a.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		expired = append(expired, a)
		delete(m.attached, id)
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, a := range expired {
		if a.cancel != nil {
			a.cancel()
		}
		if hook != nil {
			hook(*a)
		}
	}
}
