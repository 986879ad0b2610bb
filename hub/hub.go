// Package hub wires the stores to connections: it dispatches inbound
// commands, reacts to connect and disconnect, and fans full objects out to
// subscribers.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nexus/game"
	"nexus/presence"
	"nexus/room"
)

// Conn is the transport side of one connection. Send must not block; the hub
// calls it while holding store locks.
type Conn interface {
	Send([]byte) error
	Close() error
}

type Hub struct {
	log      *zap.Logger
	registry *presence.Registry
	sessions *room.Manager
	states   *game.Store

	mu    sync.RWMutex
	conns map[string]Conn

	newID func() string
	now   func() time.Time
}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithIDGenerator overrides how connection ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(h *Hub) { h.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

func New(registry *presence.Registry, sessions *room.Manager, states *game.Store, opts ...Option) *Hub {
	h := &Hub{
		log:      zap.NewNop(),
		registry: registry,
		sessions: sessions,
		states:   states,
		conns:    make(map[string]Conn),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("hub")
	return h
}

// Connect allocates an anonymous connection and returns its id. Nothing else
// happens until the connection registers.
func (h *Hub) Connect(c Conn) string {
	id := h.newID()
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	h.registry.Connect(id)
	h.log.Debug("connected", zap.String("conn", id))
	return id
}

// Disconnect unregisters the connection. When that takes its user offline it
// announces the user offline and republishes every session whose roster
// changed.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()

	userID, offline := h.registry.Unregister(connID)
	switch {
	case userID == "":
		h.log.Debug("anonymous disconnect", zap.String("conn", connID))
	case !offline:
		h.log.Debug("user still connected elsewhere", zap.String("conn", connID), zap.String("user", userID))
	default:
		h.wentOffline(connID, userID)
	}
}

// wentOffline runs the presence and roster cascade for a user that has no
// connection left.
func (h *Hub) wentOffline(connID, userID string) {
	h.log.Info("user offline", zap.String("conn", connID), zap.String("user", userID))
	u, _ := h.registry.User(userID)
	h.publishPresence(false, userID, u.Username, u.Faction)

	changed := h.sessions.UpdatePlayerOnlineStatus(userID, false)
	for _, id := range changed {
		h.PublishSession(id)
	}
	if len(changed) > 0 {
		h.PublishDirectory()
	}
}

// Sessions returns a snapshot of every active session.
func (h *Hub) Sessions() []room.Session {
	return h.sessions.List()
}

// PublicSessions returns the current directory.
func (h *Hub) PublicSessions() []room.PublicSessionSummary {
	return h.sessions.ListPublic()
}

func (h *Hub) Session(sessionID string) (room.Session, error) {
	return h.sessions.Get(sessionID)
}

func (h *Hub) GameState(sessionID string) (game.State, error) {
	return h.states.Get(sessionID)
}

// OnlineUsers returns every user currently online.
func (h *Hub) OnlineUsers() []presence.User {
	return h.registry.OnlineUsers()
}

// SessionCount returns the number of active sessions.
func (h *Hub) SessionCount() int {
	return h.sessions.Len()
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) conn(connID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}
