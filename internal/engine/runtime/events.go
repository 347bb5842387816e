package runtime

import (
	"time"
)

// Routing keys for move events.
const (
	EventMoveComputed = "move.computed"
	EventMoveFailed   = "move.failed"
)

// MoveEvent is published after every GetMove call.
type MoveEvent struct {
	RequestID  string    `json:"request_id"`
	Engine     string    `json:"engine"`
	Kind       string    `json:"kind"`
	Protocol   string    `json:"protocol"`
	FEN        string    `json:"fen"`
	Depth      int       `json:"depth,omitempty"`
	Move       string    `json:"move,omitempty"`
	Error      string    `json:"error,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey returns the routing key the event is published under.
func (e MoveEvent) RoutingKey() string {
	if e.Error != "" {
		return EventMoveFailed
	}
	return EventMoveComputed
}
