package room

import (
	"crypto/rand"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus/errs"
)

const (
	codePrefix = "NS"
	codeLength = 5
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	defaultMaxPlayers = 4
)

// CreateParams describes a session requested by its host. Zero values pick
// defaults.
type CreateParams struct {
	HostID       string
	HostName     string
	ActivityType string
	Privacy      Privacy
	MaxPlayers   int
	Roster       []Participant
}

// Manager holds all active sessions. A single lock guards the whole set;
// session counts are expected to stay in the tens.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	codes    map[string]string

	maxPlayers int
	now        func() time.Time
	newID      func() string
	newCode    func() string
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithCodeGenerator overrides join code generation.
func WithCodeGenerator(fn func() string) Option {
	return func(m *Manager) { m.newCode = fn }
}

// WithDefaultMaxPlayers sets the capacity used when the host gives none.
func WithDefaultMaxPlayers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPlayers = n
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Session),
		codes:      make(map[string]string),
		maxPlayers: defaultMaxPlayers,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		newCode:    GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession registers a new session with a join code not used by any
// active session.
func (m *Manager) CreateSession(p CreateParams) Session {
	now := m.now()
	s := &Session{
		ID:           m.newID(),
		HostID:       p.HostID,
		HostName:     p.HostName,
		ActivityType: p.ActivityType,
		Privacy:      p.Privacy,
		MaxPlayers:   p.MaxPlayers,
		CreatedAt:    now,
		UpdatedAt:    now,
		ResourcePool: ResourcePool{
			Resources:    map[string]int64{},
			Contributors: []string{},
		},
	}
	if s.ActivityType == "" {
		s.ActivityType = DefaultActivity
	}
	if s.Privacy == "" {
		s.Privacy = Public
	}
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = m.maxPlayers
	}
	s.CurrentPlayers = append([]Participant{}, p.Roster...)
	if len(s.CurrentPlayers) == 0 {
		s.CurrentPlayers = []Participant{{ID: p.HostID, Name: p.HostName, Online: true}}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		code := m.newCode()
		if _, exists := m.codes[code]; exists {
			continue
		}
		s.Code = code
		break
	}
	m.sessions[s.ID] = s
	m.codes[s.Code] = s.ID
	m.order = append(m.order, s.ID)
	return s.clone()
}

func (m *Manager) Get(sessionID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, notFound(sessionID)
	}
	return s.clone(), nil
}

// ByCode resolves a join code, ignoring case and surrounding space.
func (m *Manager) ByCode(code string) (Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[code]
	if !ok {
		return Session{}, errs.NotFound("session with code %q not found", code)
	}
	return m.sessions[id].clone(), nil
}

// Read calls fn with the session while holding the read lock, so anything fn
// emits is ordered with respect to mutations. fn must not retain s.
func (m *Manager) Read(sessionID string, fn func(s Session)) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return notFound(sessionID)
	}
	fn(*s)
	return nil
}

// List returns every active session in creation order.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].clone())
	}
	return out
}

// ListPublic returns directory entries for public sessions in creation order.
func (m *Manager) ListPublic() []PublicSessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.publicLocked()
}

// ReadDirectory calls fn with the public session list while holding the read
// lock, so no mutation lands between building the list and fn returning.
func (m *Manager) ReadDirectory(fn func([]PublicSessionSummary)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.publicLocked())
}

func (m *Manager) publicLocked() []PublicSessionSummary {
	out := make([]PublicSessionSummary, 0, len(m.order))
	for _, id := range m.order {
		s := m.sessions[id]
		if s.Privacy != Public {
			continue
		}
		out = append(out, s.Summary())
	}
	return out
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// UpdatePlayerOnlineStatus flips the roster entry of userID in every session
// and returns the ids of sessions whose roster changed. This is a linear scan.
func (m *Manager) UpdatePlayerOnlineStatus(userID string, online bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []string
	now := m.now()
	for _, id := range m.order {
		s := m.sessions[id]
		i := s.participant(userID)
		if i < 0 || s.CurrentPlayers[i].Online == online {
			continue
		}
		s.CurrentPlayers[i].Online = online
		s.UpdatedAt = now
		changed = append(changed, id)
	}
	return changed
}

// SessionsOf returns the ids of sessions whose roster contains userID.
func (m *Manager) SessionsOf(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, id := range m.order {
		if m.sessions[id].participant(userID) >= 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Join adds p to the roster, or marks an existing entry online. Capacity is
// advisory and not enforced.
func (m *Manager) Join(sessionID string, p Participant) (Session, error) {
	return m.mutate(sessionID, func(s *Session) error {
		p.Online = true
		if i := s.participant(p.ID); i >= 0 {
			cur := &s.CurrentPlayers[i]
			cur.Online = true
			if p.Name != "" {
				cur.Name = p.Name
			}
			if p.Faction != "" {
				cur.Faction = p.Faction
			}
			return nil
		}
		s.CurrentPlayers = append(s.CurrentPlayers, p)
		return nil
	})
}

// Leave removes userID from the roster.
func (m *Manager) Leave(sessionID, userID string) (Session, error) {
	return m.mutate(sessionID, func(s *Session) error {
		i := s.participant(userID)
		if i < 0 {
			return errs.NotFound("user %q is not in session %q", userID, sessionID)
		}
		s.CurrentPlayers = append(s.CurrentPlayers[:i], s.CurrentPlayers[i+1:]...)
		return nil
	})
}

// Contribute adds resources to the session pool and records the contributor
// once.
func (m *Manager) Contribute(sessionID, contributorID string, resources map[string]int64) (Session, error) {
	return m.mutate(sessionID, func(s *Session) error {
		for kind, amount := range resources {
			s.ResourcePool.Resources[kind] += amount
		}
		for _, c := range s.ResourcePool.Contributors {
			if c == contributorID {
				return nil
			}
		}
		s.ResourcePool.Contributors = append(s.ResourcePool.Contributors, contributorID)
		return nil
	})
}

// PruneIdle removes sessions with nobody online that have not changed since
// cutoff, and returns their ids.
func (m *Manager) PruneIdle(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for _, id := range append([]string(nil), m.order...) {
		s := m.sessions[id]
		if s.Online() || s.UpdatedAt.After(cutoff) {
			continue
		}
		m.removeLocked(id)
		removed = append(removed, id)
	}
	return removed
}

func (m *Manager) removeLocked(sessionID string) bool {
	s, ok := m.sessions[sessionID]
	if !ok {
		return false
	}
	delete(m.sessions, sessionID)
	delete(m.codes, s.Code)
	for i, id := range m.order {
		if id == sessionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *Manager) mutate(sessionID string, fn func(s *Session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, notFound(sessionID)
	}
	if err := fn(s); err != nil {
		return Session{}, err
	}
	s.UpdatedAt = m.now()
	return s.clone(), nil
}

func notFound(sessionID string) error {
	return errs.NotFound("session %q not found", sessionID)
}

// GenerateCode returns a join code such as "NS-7KQ2M".
func GenerateCode() string {
	b := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return codePrefix + "-" + string(b)
}
