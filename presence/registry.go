// Package presence tracks live connections and the users bound to them.
package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const anonymousName = "Anonymous"

// Profile is what a client sends when registering.
type Profile struct {
	ID            string
	Username      string
	WalletAddress string
	Faction       string
}

// User is a logical participant, independent of any single connection.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Faction       string    `json:"faction,omitempty"`
	Online        bool      `json:"online"`
	LastActive    time.Time `json:"lastActive"`
}

// Connection is one live network link.
type Connection struct {
	ID            string
	UserID        string
	Subscriptions map[string]struct{}
}

// Registry owns connections and the user directory. Users are never deleted,
// only marked offline.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	users map[string]*User

	now   func() time.Time
	newID func() string
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns: make(map[string]*Connection),
		users: make(map[string]*User),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect allocates an anonymous connection record.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &Connection{ID: connID, Subscriptions: make(map[string]struct{})}
}

// Register binds connID to the user described by p, creating the user when
// p.ID is empty or unknown, and marks it online. Empty profile fields keep
// their stored values.
//
// When connID was bound to a different user that has no other connection,
// that user goes offline and its id is returned as replaced.
func (r *Registry) Register(connID string, p Profile) (u User, replaced string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		c = &Connection{ID: connID, Subscriptions: make(map[string]struct{})}
		r.conns[connID] = c
	}

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = r.newID()
	}
	if prev := c.UserID; prev != "" && prev != id && r.releaseLocked(prev, connID) {
		replaced = prev
	}

	user, ok := r.users[id]
	if !ok {
		user = &User{ID: id, Username: anonymousName}
		r.users[id] = user
	}
	if name := strings.TrimSpace(p.Username); name != "" {
		user.Username = name
	}
	if p.WalletAddress != "" {
		user.WalletAddress = p.WalletAddress
	}
	if p.Faction != "" {
		user.Faction = p.Faction
	}
	user.Online = true
	user.LastActive = r.now()
	c.UserID = id
	return *user, replaced
}

// Unregister drops the connection and returns the user bound to it, if any.
// offline reports whether that user went offline, which happens only when no
// other connection is still bound to it.
func (r *Registry) Unregister(connID string) (userID string, offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if c.UserID == "" {
		return "", false
	}
	return c.UserID, r.releaseLocked(c.UserID, connID)
}

// releaseLocked marks userID offline unless a connection other than connID
// is bound to it.
func (r *Registry) releaseLocked(userID, connID string) bool {
	for id, c := range r.conns {
		if id != connID && c.UserID == userID {
			return false
		}
	}
	u, ok := r.users[userID]
	if !ok || !u.Online {
		return false
	}
	u.Online = false
	u.LastActive = r.now()
	return true
}

// UserOf returns the user bound to connID.
func (r *Registry) UserOf(connID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok || c.UserID == "" {
		return User{}, false
	}
	u, ok := r.users[c.UserID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (r *Registry) User(userID string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// OnlineUsers returns online users sorted by id.
func (r *Registry) OnlineUsers() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []User
	for _, u := range r.users {
		if u.Online {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe adds sessionID to the connection's subscriptions. It reports
// false for unknown connections.
func (r *Registry) Subscribe(connID, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	c.Subscriptions[sessionID] = struct{}{}
	return true
}

func (r *Registry) Unsubscribe(connID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[connID]; ok {
		delete(c.Subscriptions, sessionID)
	}
}

// DropSession removes sessionID from every connection's subscriptions.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		delete(c.Subscriptions, sessionID)
	}
}

// Subscribers returns the ids of connections subscribed to sessionID.
func (r *Registry) Subscribers(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, c := range r.conns {
		if _, ok := c.Subscriptions[sessionID]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
