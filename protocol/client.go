package protocol

import (
	"strings"

	"nexus/errs"
	"nexus/game"
	"nexus/room"
)

// Command structs coming in from the client. Validate rejects malformed
// payloads before they reach a store.
type Command interface {
	Validate() error
}

type RegisterUser struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Faction       string `json:"faction,omitempty"`
}

func (RegisterUser) Validate() error { return nil }

type CreateSession struct {
	HostID         string             `json:"hostId"`
	HostName       string             `json:"hostName"`
	ActivityType   string             `json:"activityType,omitempty"`
	Privacy        room.Privacy       `json:"privacy,omitempty"`
	MaxPlayers     int                `json:"maxPlayers,omitempty"`
	CurrentPlayers []room.Participant `json:"currentPlayers,omitempty"`
	Territories    []game.Territory   `json:"territories,omitempty"`
}

func (c CreateSession) Validate() error {
	if err := required("hostId", c.HostID); err != nil {
		return err
	}
	if err := required("hostName", c.HostName); err != nil {
		return err
	}
	if c.Privacy != "" && !c.Privacy.Valid() {
		return errs.Validation("privacy must be %q or %q", room.Public, room.Private)
	}
	if c.MaxPlayers < 0 {
		return errs.Validation("maxPlayers must not be negative")
	}
	for _, p := range c.CurrentPlayers {
		if strings.TrimSpace(p.ID) == "" {
			return errs.Validation("currentPlayers entries need an id")
		}
	}
	seen := make(map[string]bool, len(c.Territories))
	for _, t := range c.Territories {
		if strings.TrimSpace(t.ID) == "" {
			return errs.Validation("territories entries need an id")
		}
		if seen[t.ID] {
			return errs.Validation("duplicate territory id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// JoinSession names the session by id or by join code.
type JoinSession struct {
	SessionID string `json:"sessionId,omitempty"`
	Code      string `json:"code,omitempty"`
}

func (c JoinSession) Validate() error {
	if strings.TrimSpace(c.SessionID) == "" && strings.TrimSpace(c.Code) == "" {
		return errs.Validation("sessionId or code is required")
	}
	return nil
}

type LeaveSession struct {
	SessionID string `json:"sessionId"`
}

func (c LeaveSession) Validate() error {
	return required("sessionId", c.SessionID)
}

type UpdateGameState struct {
	SessionID string      `json:"sessionId"`
	GameState *game.State `json:"gameState"`
}

func (c UpdateGameState) Validate() error {
	if err := required("sessionId", c.SessionID); err != nil {
		return err
	}
	if c.GameState == nil {
		return errs.Validation("gameState is required")
	}
	return nil
}

type ClaimTerritory struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	TerritoryID string `json:"territoryId"`
}

func (c ClaimTerritory) Validate() error {
	return requiredAll(
		"sessionId", c.SessionID,
		"playerId", c.PlayerID,
		"territoryId", c.TerritoryID,
	)
}

type ExtractResources struct {
	SessionID   string           `json:"sessionId"`
	PlayerID    string           `json:"playerId"`
	TerritoryID string           `json:"territoryId"`
	Resources   map[string]int64 `json:"resources"`
}

func (c ExtractResources) Validate() error {
	if err := requiredAll(
		"sessionId", c.SessionID,
		"playerId", c.PlayerID,
		"territoryId", c.TerritoryID,
	); err != nil {
		return err
	}
	return validResources(c.Resources)
}

type DeployAgent struct {
	SessionID   string `json:"sessionId"`
	PlayerID    string `json:"playerId"`
	AgentType   string `json:"agentType"`
	TerritoryID string `json:"territoryId"`
	Task        string `json:"task,omitempty"`
}

func (c DeployAgent) Validate() error {
	return requiredAll(
		"sessionId", c.SessionID,
		"playerId", c.PlayerID,
		"agentType", c.AgentType,
		"territoryId", c.TerritoryID,
	)
}

type ContributeResources struct {
	SessionID string           `json:"sessionId"`
	PlayerID  string           `json:"playerId"`
	Resources map[string]int64 `json:"resources"`
}

func (c ContributeResources) Validate() error {
	if err := requiredAll("sessionId", c.SessionID, "playerId", c.PlayerID); err != nil {
		return err
	}
	return validResources(c.Resources)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errs.Validation("%s is required", field)
	}
	return nil
}

// requiredAll takes alternating field names and values.
func requiredAll(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := required(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func validResources(resources map[string]int64) error {
	if len(resources) == 0 {
		return errs.Validation("resources must not be empty")
	}
	for kind := range resources {
		if strings.TrimSpace(kind) == "" {
			return errs.Validation("resource type must not be empty")
		}
	}
	return nil
}
