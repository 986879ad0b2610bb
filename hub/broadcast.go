package hub

import (
	"go.uber.org/zap"

	"nexus/game"
	"nexus/protocol"
	"nexus/room"
)

// PublishDirectory sends the public session list to every connection. Like
// PublishSession it queues the frame under the session store lock.
func (h *Hub) PublishDirectory() {
	h.sessions.ReadDirectory(func(list []room.PublicSessionSummary) {
		b, err := protocol.Encode(protocol.MsgSessionsList, list)
		if err != nil {
			h.log.Error("encode directory", zap.Error(err))
			return
		}
		h.broadcast(b)
	})
}

// PublishSession sends the full session to its subscribers. The frame is
// built and queued under the session store lock, so subscribers see updates
// in the order they were applied.
func (h *Hub) PublishSession(sessionID string) {
	err := h.sessions.Read(sessionID, func(s room.Session) {
		b, err := protocol.Encode(protocol.MsgSessionUpdated, s)
		if err != nil {
			h.log.Error("encode session", zap.String("session", sessionID), zap.Error(err))
			return
		}
		h.sendTo(h.registry.Subscribers(sessionID), b)
	})
	if err != nil {
		h.log.Warn("publish of missing session", zap.String("session", sessionID), zap.Error(err))
	}
}

// PublishGameState sends the full game state to the session's subscribers,
// ordered with respect to mutations of that session.
func (h *Hub) PublishGameState(sessionID string) {
	err := h.states.Read(sessionID, func(st game.State) {
		b, err := protocol.Encode(protocol.MsgGameStateUpdated, protocol.GameStateUpdate{
			SessionID: sessionID,
			GameState: st,
		})
		if err != nil {
			h.log.Error("encode game state", zap.String("session", sessionID), zap.Error(err))
			return
		}
		h.sendTo(h.registry.Subscribers(sessionID), b)
	})
	if err != nil {
		h.log.Warn("publish of missing game state", zap.String("session", sessionID), zap.Error(err))
	}
}

func (h *Hub) publishPresence(online bool, userID, username, faction string) {
	t := protocol.MsgUserOffline
	if online {
		t = protocol.MsgUserOnline
	}
	b, err := protocol.Encode(t, protocol.Presence{UserID: userID, Username: username, Faction: faction})
	if err != nil {
		h.log.Error("encode presence", zap.String("user", userID), zap.Error(err))
		return
	}
	h.broadcast(b)
}

// reply sends one event to a single connection.
func (h *Hub) reply(connID, t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		h.log.Error("encode reply", zap.String("conn", connID), zap.String("event", t), zap.Error(err))
		return
	}
	h.sendTo([]string{connID}, b)
}

func (h *Hub) broadcast(b []byte) {
	h.mu.RLock()
	targets := make(map[string]Conn, len(h.conns))
	for id, c := range h.conns {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		h.deliver(id, c, b)
	}
}

func (h *Hub) sendTo(connIDs []string, b []byte) {
	for _, id := range connIDs {
		c, ok := h.conn(id)
		if !ok {
			continue
		}
		h.deliver(id, c, b)
	}
}

// deliver is best-effort: a connection that cannot take the frame is closed
// and its transport will report the disconnect.
func (h *Hub) deliver(connID string, c Conn, b []byte) {
	if err := c.Send(b); err != nil {
		h.log.Debug("send failed, closing", zap.String("conn", connID), zap.Error(err))
		_ = c.Close()
	}
}
