package game

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus/errs"
)

// Store owns exactly one State per session. Every session has its own lock:
// at most one mutation per session is applied at a time, and sessions never
// block each other.
type Store struct {
	mu     sync.RWMutex
	states map[string]*entry

	now   func() time.Time
	newID func() string
}

type entry struct {
	mu    sync.Mutex
	state State
}

type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how agent and event ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		states: make(map[string]*entry),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitState creates (or resets) the state of a session with the given seed.
func (s *Store) InitState(sessionID string, territories []Territory, players []Player) State {
	st := State{
		Territories: cloneSlice(territories),
		Players:     cloneSlice(players),
		Agents:      []Agent{},
		Events:      []Event{},
	}
	if st.Territories == nil {
		st.Territories = []Territory{}
	}
	if st.Players == nil {
		st.Players = []Player{}
	}
	for i := range st.Players {
		st.Players[i].Resources = cloneBalances(st.Players[i].Resources)
		if st.Players[i].Resources == nil {
			st.Players[i].Resources = map[string]int64{}
		}
	}

	s.mu.Lock()
	s.states[sessionID] = &entry{state: st}
	s.mu.Unlock()
	return st.Clone()
}

// Delete drops a session's state. Unknown ids are ignored.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.states, sessionID)
	s.mu.Unlock()
}

// Get returns a copy of the session's state.
func (s *Store) Get(sessionID string) (State, error) {
	var out State
	err := s.Read(sessionID, func(st State) { out = st.Clone() })
	return out, err
}

// Read calls fn with the current state while holding the session's lock, so
// anything fn emits is ordered with respect to mutations. fn must not retain
// or modify st.
func (s *Store) Read(sessionID string, fn func(st State)) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
	return nil
}

// ReplaceState overwrites the whole state of an existing session.
func (s *Store) ReplaceState(sessionID string, next State) (State, error) {
	return s.mutate(sessionID, func(st *State) error {
		*st = next.Clone()
		return nil
	})
}

// AddPlayer ensures playerID has an entry in the player list.
func (s *Store) AddPlayer(sessionID, playerID string) (State, error) {
	return s.mutate(sessionID, func(st *State) error {
		if st.player(playerID) == nil {
			st.Players = append(st.Players, Player{ID: playerID, Resources: map[string]int64{}})
		}
		return nil
	})
}

// ClaimTerritory transfers a territory to playerID regardless of its
// previous owner.
func (s *Store) ClaimTerritory(sessionID, playerID, territoryID string) (State, error) {
	return s.mutate(sessionID, func(st *State) error {
		t := st.territory(territoryID)
		if t == nil {
			return errs.NotFound("territory %q not found", territoryID)
		}
		now := s.now()
		t.OwnerID = playerID
		t.LastClaimedAt = &now
		return nil
	})
}

// ExtractResources adds delta to the player's balances and logs the
// extraction.
func (s *Store) ExtractResources(sessionID, playerID, territoryID string, delta map[string]int64) (State, error) {
	return s.mutate(sessionID, func(st *State) error {
		p := st.player(playerID)
		if p == nil {
			return errs.NotFound("player %q not found", playerID)
		}
		if st.territory(territoryID) == nil {
			return errs.NotFound("territory %q not found", territoryID)
		}
		if p.Resources == nil {
			p.Resources = make(map[string]int64, len(delta))
		}
		for kind, amount := range delta {
			p.Resources[kind] += amount
		}
		st.Events = append(st.Events, Event{
			ID:          s.newID(),
			Type:        EventResourceExtraction,
			PlayerID:    playerID,
			TerritoryID: territoryID,
			Resources:   cloneBalances(delta),
			Timestamp:   s.now(),
		})
		return nil
	})
}

// DeployAgent places a new active agent on a territory and returns its id.
func (s *Store) DeployAgent(sessionID, playerID, agentType, territoryID, task string) (State, string, error) {
	var agentID string
	st, err := s.mutate(sessionID, func(st *State) error {
		if st.territory(territoryID) == nil {
			return errs.NotFound("territory %q not found", territoryID)
		}
		now := s.now()
		agentID = s.newID()
		st.Agents = append(st.Agents, Agent{
			ID:          agentID,
			Type:        agentType,
			OwnerID:     playerID,
			TerritoryID: territoryID,
			Task:        task,
			Status:      AgentActive,
			DeployedAt:  now,
		})
		st.Events = append(st.Events, Event{
			ID:          s.newID(),
			Type:        EventAgentDeployed,
			PlayerID:    playerID,
			TerritoryID: territoryID,
			AgentID:     agentID,
			AgentType:   agentType,
			Timestamp:   now,
		})
		return nil
	})
	if err != nil {
		return State{}, "", err
	}
	return st, agentID, nil
}

func (s *Store) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.states[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("game state for session %q not found", sessionID)
	}
	return e, nil
}

// mutate applies fn as one critical section. fn leaves st untouched when it
// returns an error.
func (s *Store) mutate(sessionID string, fn func(st *State) error) (State, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return State{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(&e.state); err != nil {
		return State{}, err
	}
	return e.state.Clone(), nil
}
