package game

import "time"

// Agent statuses.
const (
	AgentActive = "active"
)

// Event types appended to the log.
const (
	EventResourceExtraction = "resource_extraction"
	EventAgentDeployed      = "agent_deployed"
)

// State is the authoritative simulation data of one session.
type State struct {
	Territories []Territory `json:"territories"`
	Players     []Player    `json:"players"`
	Agents      []Agent     `json:"agents"`
	Events      []Event     `json:"events"`
}

type Territory struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	OwnerID       string          `json:"ownerId,omitempty"`
	LastClaimedAt *time.Time      `json:"lastClaimedAt,omitempty"`
	Resources     []ResourceYield `json:"resources,omitempty"`
}

// ResourceYield describes what a territory produces.
type ResourceYield struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

type Player struct {
	ID        string           `json:"id"`
	Resources map[string]int64 `json:"resources"`
}

type Agent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	OwnerID     string    `json:"ownerId"`
	TerritoryID string    `json:"territoryId"`
	Task        string    `json:"task,omitempty"`
	Status      string    `json:"status"`
	DeployedAt  time.Time `json:"deployedAt"`
}

// Event is one entry of the append-only log. Fields unused by a type are empty.
type Event struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	PlayerID    string           `json:"playerId,omitempty"`
	TerritoryID string           `json:"territoryId,omitempty"`
	Resources   map[string]int64 `json:"resources,omitempty"`
	AgentID     string           `json:"agentId,omitempty"`
	AgentType   string           `json:"agentType,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

func (s *State) territory(id string) *Territory {
	for i := range s.Territories {
		if s.Territories[i].ID == id {
			return &s.Territories[i]
		}
	}
	return nil
}

func (s *State) player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy that shares no slices or maps with s.
func (s State) Clone() State {
	out := State{
		Territories: cloneSlice(s.Territories),
		Players:     cloneSlice(s.Players),
		Agents:      cloneSlice(s.Agents),
		Events:      cloneSlice(s.Events),
	}
	for i := range out.Territories {
		t := &out.Territories[i]
		if t.LastClaimedAt != nil {
			at := *t.LastClaimedAt
			t.LastClaimedAt = &at
		}
		t.Resources = cloneSlice(t.Resources)
	}
	for i := range out.Players {
		out.Players[i].Resources = cloneBalances(out.Players[i].Resources)
	}
	for i := range out.Events {
		out.Events[i].Resources = cloneBalances(out.Events[i].Resources)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneBalances(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
