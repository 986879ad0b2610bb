package room

import "time"

type Privacy string

const (
	Public  Privacy = "public"
	Private Privacy = "private"
)

// Valid reports whether p is a known privacy setting.
func (p Privacy) Valid() bool {
	return p == Public || p == Private
}

// DefaultActivity is used when the host does not name one.
const DefaultActivity = "mission"

// Session is a joinable multiplayer room.
type Session struct {
	ID             string        `json:"id"`
	Code           string        `json:"code"`
	HostID         string        `json:"hostId"`
	HostName       string        `json:"hostName"`
	ActivityType   string        `json:"activityType"`
	Privacy        Privacy       `json:"privacy"`
	MaxPlayers     int           `json:"maxPlayers"`
	CurrentPlayers []Participant `json:"currentPlayers"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	ResourcePool   ResourcePool  `json:"resourcePool"`
}

// Participant is one roster entry.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Faction string `json:"faction,omitempty"`
	Online  bool   `json:"online"`
}

// ResourcePool aggregates what participants have contributed to the session.
type ResourcePool struct {
	Resources    map[string]int64 `json:"resources"`
	Contributors []string         `json:"contributors"`
}

// PublicSessionSummary is the directory projection of a Session.
type PublicSessionSummary struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	HostName     string `json:"hostName"`
	ActivityType string `json:"activityType"`
	PlayerCount  int    `json:"playerCount"`
	MaxPlayers   int    `json:"maxPlayers"`
}

// Summary projects s for the directory. Only online roster entries count.
func (s Session) Summary() PublicSessionSummary {
	online := 0
	for _, p := range s.CurrentPlayers {
		if p.Online {
			online++
		}
	}
	return PublicSessionSummary{
		ID:           s.ID,
		Code:         s.Code,
		HostName:     s.HostName,
		ActivityType: s.ActivityType,
		PlayerCount:  online,
		MaxPlayers:   s.MaxPlayers,
	}
}

// Online reports whether any roster entry is online.
func (s Session) Online() bool {
	for _, p := range s.CurrentPlayers {
		if p.Online {
			return true
		}
	}
	return false
}

func (s *Session) participant(userID string) int {
	for i := range s.CurrentPlayers {
		if s.CurrentPlayers[i].ID == userID {
			return i
		}
	}
	return -1
}

func (s Session) clone() Session {
	out := s
	out.CurrentPlayers = append([]Participant{}, s.CurrentPlayers...)
	out.ResourcePool.Contributors = append([]string{}, s.ResourcePool.Contributors...)
	out.ResourcePool.Resources = make(map[string]int64, len(s.ResourcePool.Resources))
	for k, v := range s.ResourcePool.Resources {
		out.ResourcePool.Resources[k] = v
	}
	return out
}
