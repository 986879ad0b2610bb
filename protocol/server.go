package protocol

import (
	"nexus/game"
)

// GameStateUpdate is pushed to session subscribers after every mutation.
type GameStateUpdate struct {
	SessionID string     `json:"sessionId"`
	GameState game.State `json:"gameState"`
}

// AgentDeployment tells the deploying connection which agent it created.
type AgentDeployment struct {
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
}

type Presence struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Faction  string `json:"faction,omitempty"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
}
