package hub

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reap removes sessions that have had nobody online for longer than ttl,
// together with their game state and subscriptions. It returns the removed
// session ids.
func (h *Hub) Reap(ttl time.Duration) []string {
	removed := h.sessions.PruneIdle(h.now().Add(-ttl))
	for _, id := range removed {
		h.states.Delete(id)
		h.registry.DropSession(id)
	}
	if len(removed) > 0 {
		h.log.Info("reaped idle sessions", zap.Strings("sessions", removed))
		h.PublishDirectory()
	}
	return removed
}

// RunReaper calls Reap every interval until ctx is done. A non-positive ttl
// disables expiry.
func (h *Hub) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Reap(ttl)
		}
	}
}
