package hub

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nexus/errs"
	"nexus/game"
	"nexus/presence"
	"nexus/protocol"
	"nexus/room"
)

// Handle processes one inbound frame to completion. Failures are reported
// only to the originating connection.
func (h *Hub) Handle(connID string, frame []byte) {
	env, err := protocol.DecodeEnvelope(frame)
	if err != nil {
		h.fail(connID, "", err)
		return
	}
	cmd, err := protocol.DecodeCommand(env)
	if err != nil {
		h.fail(connID, env.T, err)
		return
	}
	if err := h.dispatch(connID, cmd); err != nil {
		h.fail(connID, env.T, err)
		return
	}
	h.log.Debug("handled", zap.String("conn", connID), zap.String("event", env.T))
}

func (h *Hub) dispatch(connID string, cmd protocol.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("command panicked", zap.String("conn", connID), zap.Any("panic", r), zap.Stack("stack"))
			err = errs.Internal(fmt.Errorf("panic: %v", r))
		}
	}()

	switch c := cmd.(type) {
	case protocol.RegisterUser:
		return h.registerUser(connID, c)
	case protocol.CreateSession:
		return h.createSession(connID, c)
	case protocol.JoinSession:
		return h.joinSession(connID, c)
	case protocol.LeaveSession:
		return h.leaveSession(connID, c)
	case protocol.UpdateGameState:
		return h.mutated(connID, c.SessionID, func() error {
			_, err := h.states.ReplaceState(c.SessionID, *c.GameState)
			return err
		})
	case protocol.ClaimTerritory:
		return h.mutated(connID, c.SessionID, func() error {
			_, err := h.states.ClaimTerritory(c.SessionID, c.PlayerID, c.TerritoryID)
			return err
		})
	case protocol.ExtractResources:
		return h.mutated(connID, c.SessionID, func() error {
			_, err := h.states.ExtractResources(c.SessionID, c.PlayerID, c.TerritoryID, c.Resources)
			return err
		})
	case protocol.DeployAgent:
		return h.mutated(connID, c.SessionID, func() error {
			_, agentID, err := h.states.DeployAgent(c.SessionID, c.PlayerID, c.AgentType, c.TerritoryID, c.Task)
			if err != nil {
				return err
			}
			h.reply(connID, protocol.MsgAgentDeployed, protocol.AgentDeployment{SessionID: c.SessionID, AgentID: agentID})
			return nil
		})
	case protocol.ContributeResources:
		return h.contributeResources(connID, c)
	default:
		return errs.Validation("unsupported command %T", cmd)
	}
}

// fail sends an error event to the originating connection.
func (h *Hub) fail(connID, event string, err error) {
	kind := errs.KindOf(err)
	msg := err.Error()
	if kind == errs.KindInternal {
		h.log.Error("command failed", zap.String("conn", connID), zap.String("event", event), zap.Error(err))
		msg = "internal error"
	} else {
		h.log.Debug("command rejected", zap.String("conn", connID), zap.String("event", event), zap.Error(err))
	}
	h.reply(connID, protocol.MsgError, protocol.Error{Message: msg, Code: string(kind), Event: event})
}

func (h *Hub) registerUser(connID string, c protocol.RegisterUser) error {
	u, replaced := h.registry.Register(connID, presence.Profile{
		ID:            c.ID,
		Username:      c.Username,
		WalletAddress: c.WalletAddress,
		Faction:       c.Faction,
	})
	if replaced != "" {
		h.wentOffline(connID, replaced)
	}
	h.log.Info("user online", zap.String("conn", connID), zap.String("user", u.ID))

	h.reply(connID, protocol.MsgSessionsList, h.sessions.ListPublic())
	h.publishPresence(true, u.ID, u.Username, u.Faction)

	// A returning user picks its sessions back up on the new connection.
	for _, id := range h.sessions.SessionsOf(u.ID) {
		h.registry.Subscribe(connID, id)
	}
	changed := h.sessions.UpdatePlayerOnlineStatus(u.ID, true)
	for _, id := range changed {
		h.PublishSession(id)
	}
	if len(changed) > 0 {
		h.PublishDirectory()
	}
	return nil
}

func (h *Hub) createSession(connID string, c protocol.CreateSession) error {
	s := h.sessions.CreateSession(room.CreateParams{
		HostID:       strings.TrimSpace(c.HostID),
		HostName:     strings.TrimSpace(c.HostName),
		ActivityType: c.ActivityType,
		Privacy:      c.Privacy,
		MaxPlayers:   c.MaxPlayers,
		Roster:       c.CurrentPlayers,
	})
	players := make([]game.Player, 0, len(s.CurrentPlayers))
	for _, p := range s.CurrentPlayers {
		players = append(players, game.Player{ID: p.ID})
	}
	h.states.InitState(s.ID, c.Territories, players)
	h.registry.Subscribe(connID, s.ID)

	h.log.Info("session created",
		zap.String("conn", connID),
		zap.String("session", s.ID),
		zap.String("code", s.Code),
		zap.String("privacy", string(s.Privacy)),
	)
	h.reply(connID, protocol.MsgSessionCreated, s)
	h.PublishDirectory()
	return nil
}

func (h *Hub) joinSession(connID string, c protocol.JoinSession) error {
	u, ok := h.registry.UserOf(connID)
	if !ok {
		return errs.Unregistered("register_user must be sent before joining a session")
	}
	sessionID := strings.TrimSpace(c.SessionID)
	if sessionID == "" {
		s, err := h.sessions.ByCode(c.Code)
		if err != nil {
			return err
		}
		sessionID = s.ID
	}
	s, err := h.sessions.Join(sessionID, room.Participant{ID: u.ID, Name: u.Username, Faction: u.Faction})
	if err != nil {
		return err
	}
	if _, err := h.states.AddPlayer(sessionID, u.ID); err != nil {
		return err
	}
	h.registry.Subscribe(connID, sessionID)
	if len(s.CurrentPlayers) > s.MaxPlayers {
		h.log.Warn("session over capacity",
			zap.String("session", sessionID),
			zap.Int("players", len(s.CurrentPlayers)),
			zap.Int("max", s.MaxPlayers),
		)
	}

	h.PublishSession(sessionID)
	h.PublishGameState(sessionID)
	h.PublishDirectory()
	return nil
}

func (h *Hub) leaveSession(connID string, c protocol.LeaveSession) error {
	u, ok := h.registry.UserOf(connID)
	if !ok {
		return errs.Unregistered("register_user must be sent before leaving a session")
	}
	if _, err := h.sessions.Leave(c.SessionID, u.ID); err != nil {
		return err
	}
	h.registry.Unsubscribe(connID, c.SessionID)

	h.PublishSession(c.SessionID)
	h.PublishDirectory()
	return nil
}

func (h *Hub) contributeResources(connID string, c protocol.ContributeResources) error {
	if _, err := h.sessions.Contribute(c.SessionID, c.PlayerID, c.Resources); err != nil {
		return err
	}
	h.registry.Subscribe(connID, c.SessionID)
	h.PublishSession(c.SessionID)
	return nil
}

// mutated runs a game state mutation and, when it succeeds, subscribes the
// issuing connection and pushes the full state to the session.
func (h *Hub) mutated(connID, sessionID string, apply func() error) error {
	if err := apply(); err != nil {
		return err
	}
	h.registry.Subscribe(connID, sessionID)
	h.PublishGameState(sessionID)
	return nil
}
