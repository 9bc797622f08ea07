package session

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursekit/draft-engine/internal/models"
	"github.com/coursekit/draft-engine/internal/templates"
)

// Common errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// Manager owns every live editing session
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	templates   *templates.Loader
	stagingRoot string
	ttl         time.Duration
}

// NewManager creates a session manager. Staged files land in per-session
// directories under stagingRoot.
func NewManager(loader *templates.Loader, stagingRoot string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		templates:   loader,
		stagingRoot: stagingRoot,
		ttl:         ttl,
	}
}

// Create opens a new session for a principal. With a template ID the draft
// starts from the template skeleton, otherwise empty.
func (m *Manager) Create(principal, templateID string) (*Session, error) {
	d := models.NewCourseDraft()
	if templateID != "" {
		tmpl := m.templates.Get(templateID)
		if tmpl == nil {
			return nil, ErrTemplateNotFound
		}
		d = tmpl.Instantiate()
	}

	id := uuid.New().String()[:12]
	s := newSession(id, principal, d, filepath.Join(m.stagingRoot, id), m.ttl)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session and its staged files
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Discard()
	return nil
}

// List returns the sessions owned by a principal; with an empty principal,
// every session.
func (m *Manager) List(principal string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if principal == "" || s.Principal == principal {
			result = append(result, s)
		}
	}
	return result
}

// Expired returns every session past its deadline
func (m *Manager) Expired(now time.Time) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.Expired(now) {
			result = append(result, s)
		}
	}
	return result
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// TTL returns the configured session lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
