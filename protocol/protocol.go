// Package protocol defines the websocket wire format: a typed envelope whose
// payload is decoded per event name.
package protocol

import (
	"encoding/json"
)

// Inbound events.
const (
	MsgRegisterUser        = "register_user"
	MsgCreateSession       = "create_session"
	MsgJoinSession         = "join_session"
	MsgLeaveSession        = "leave_session"
	MsgUpdateGameState     = "update_game_state"
	MsgClaimTerritory      = "claim_territory"
	MsgExtractResources    = "extract_resources"
	MsgDeployAgent         = "deploy_agent"
	MsgContributeResources = "contribute_resources"
)

// Outbound events.
const (
	MsgSessionsList     = "sessions_list"
	MsgSessionCreated   = "session_created"
	MsgSessionUpdated   = "session_updated"
	MsgGameStateUpdated = "game_state_updated"
	MsgAgentDeployed    = "agent_deployed"
	MsgUserOnline       = "user_online"
	MsgUserOffline      = "user_offline"
	MsgError            = "error"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"` // raw payload bytes
}
