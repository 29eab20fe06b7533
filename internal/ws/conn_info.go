package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo describes one live websocket subscription for event payloads
// and error reporting.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
