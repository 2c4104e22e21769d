// Package streaming defines the messages of the live measurement feed.
package streaming

import (
	"encoding/json"

	"github.com/minesight/tilecore/pkg/core"
)

// Message type constants matching the feed protocol.
const (
	TypeStartSession       = "start_session"
	TypeEndSession         = "end_session"
	TypeMeasurementAdded   = "measurement_added"
	TypeMeasurementRemoved = "measurement_removed"
	TypeHistoryCleared     = "history_cleared"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a viewer session with its current history.
type StartSessionPayload struct {
	Session string                   `json:"session"`
	Unit    string                   `json:"unit"`
	Records []core.MeasurementRecord `json:"records"`
}

// RemovedPayload names a deleted measurement.
type RemovedPayload struct {
	ID string `json:"id"`
}
