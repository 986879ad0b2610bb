package protocol

import "testing"

func TestMessageConstants(t *testing.T) {
	want := map[string]string{
		MsgRegisterUser:        "register_user",
		MsgCreateSession:       "create_session",
		MsgJoinSession:         "join_session",
		MsgLeaveSession:        "leave_session",
		MsgUpdateGameState:     "update_game_state",
		MsgClaimTerritory:      "claim_territory",
		MsgExtractResources:    "extract_resources",
		MsgDeployAgent:         "deploy_agent",
		MsgContributeResources: "contribute_resources",
		MsgSessionsList:        "sessions_list",
		MsgSessionCreated:      "session_created",
		MsgSessionUpdated:      "session_updated",
		MsgGameStateUpdated:    "game_state_updated",
		MsgAgentDeployed:       "agent_deployed",
		MsgUserOnline:          "user_online",
		MsgUserOffline:         "user_offline",
		MsgError:               "error",
	}
	if len(want) != 17 {
		t.Fatalf("message types collide: %d distinct, want 17", len(want))
	}
	for got, w := range want {
		if got != w {
			t.Fatalf("constant = %q, want %q", got, w)
		}
	}
}
