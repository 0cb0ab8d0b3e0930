package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/storage"
)

// SessionKeepAliveWindow is how long to keep sessions that are actively being used.
const SessionKeepAliveWindow = 5 * time.Minute

// Manager keeps one Controller per signed-in user.
type Manager struct {
	sessions map[string]*Controller
	mu       sync.Mutex
	catalog  *catalog.Catalog
	store    storage.StateStore
	debounce time.Duration
	log      *slog.Logger

	anonymous *Controller
	opening   map[string]*opening
}

// opening is a session whose document is being read from the store.
type opening struct {
	done chan struct{}
	c    *Controller
}

// NewManager creates a session manager backed by store.
func NewManager(cat *catalog.Catalog, store storage.StateStore, debounce time.Duration) *Manager {
	m := &Manager{
		sessions: make(map[string]*Controller),
		opening:  make(map[string]*opening),
		catalog:  cat,
		store:    store,
		debounce: debounce,
		log:      slog.Default().With("component", "session"),
	}
	m.anonymous = NewController(Config{Catalog: cat, ReadOnly: true, Logger: slog.Default()})
	return m
}

// Anonymous returns the shared read-only session served to signed-out clients.
func (m *Manager) Anonymous() *Controller {
	return m.anonymous
}

// Open returns the session of userID, loading it from the store on first use.
// The store is read once per session and outside the manager lock; concurrent
// opens of the same user wait for the first. A missing document is created with
// defaults; a failed read starts from defaults without writing.
func (m *Manager) Open(ctx context.Context, userID string) *Controller {
	m.mu.Lock()
	if c, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return c
	}
	if op, ok := m.opening[userID]; ok {
		m.mu.Unlock()
		<-op.done
		return op.c
	}
	op := &opening{done: make(chan struct{})}
	m.opening[userID] = op
	m.mu.Unlock()

	op.c = m.load(ctx, userID)

	m.mu.Lock()
	m.sessions[userID] = op.c
	delete(m.opening, userID)
	m.mu.Unlock()
	close(op.done)
	return op.c
}

func (m *Manager) load(ctx context.Context, userID string) *Controller {
	c := NewController(Config{
		UserID:   userID,
		Catalog:  m.catalog,
		Store:    m.store,
		Debounce: m.debounce,
	})

	doc, err := m.store.Read(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		doc = models.NewUserState(userID, m.catalog.DefaultInputs())
		doc.CalcParams = m.catalog.Defaults()
		if err := m.store.Upsert(ctx, userID, doc); err != nil {
			m.log.Warn("failed to create state", "user", shortID(userID), "error", err)
		}
		m.log.Info("created state", "user", shortID(userID))
	case err != nil:
		m.log.Warn("failed to read state, using defaults", "user", shortID(userID), "error", err)
		doc = nil
	}
	if doc != nil {
		c.Restore(doc)
	}
	return c
}

// Get returns an open session.
func (m *Manager) Get(userID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[userID]
	return c, ok
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupOldSessions flushes and closes sessions idle for longer than maxAge,
// keeping those used within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) {
	if maxAge < SessionKeepAliveWindow {
		maxAge = SessionKeepAliveWindow
	}
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var idle []*Controller
	for id, c := range m.sessions {
		if c.LastAccess().Before(cutoff) {
			idle = append(idle, c)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, c := range idle {
		c.Close()
		m.log.Info("closed idle session", "user", shortID(c.UserID()),
			"idle", time.Since(c.LastAccess()).Round(time.Second))
	}
}

// Close flushes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Controller, 0, len(m.sessions))
	for id, c := range m.sessions {
		sessions = append(sessions, c)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
	m.anonymous.Close()
}
