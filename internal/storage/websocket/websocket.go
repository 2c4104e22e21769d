// Package websocket streams measurement history changes to a remote
// collector as they happen.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/streaming"
)

// Config holds the feed endpoint.
type Config struct {
	URL    string
	Secret string
}

// Feed is a history sink that forwards every change over a WebSocket.
// Changes are sent in order without waiting; session start and end wait for
// the server's ack.
type Feed struct {
	conn *connection
	cfg  Config
	log  *slog.Logger
}

// New creates a feed. Nothing is dialed until Open.
func New(cfg Config, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "feed")
	return &Feed{conn: newConnection(log), cfg: cfg, log: log}
}

// Open connects to the collector.
func (f *Feed) Open() error {
	return f.conn.open(f.cfg.URL, f.cfg.Secret)
}

// Close sends what is still queued and disconnects.
func (f *Feed) Close() error {
	return f.conn.close()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (f *Feed) post(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		f.log.Error("Feed message not sent", "type", msgType, "error", err)
		return
	}
	f.conn.send(data)
}

// StartSession announces the session with a snapshot of its history. The
// announcement is replayed whenever the feed reconnects.
func (f *Feed) StartSession(session string, unit string, records []core.MeasurementRecord) error {
	if records == nil {
		records = []core.MeasurementRecord{}
	}
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{
		Session: session,
		Unit:    unit,
		Records: records,
	})
	if err != nil {
		return err
	}

	f.conn.mu.Lock()
	f.conn.greeter = data
	f.conn.mu.Unlock()

	return f.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession tells the collector no more changes follow.
func (f *Feed) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, struct{}{})
	if err != nil {
		return err
	}
	err = f.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	f.conn.mu.Lock()
	f.conn.greeter = nil
	f.conn.mu.Unlock()
	return err
}

func (f *Feed) RecordAppended(rec core.MeasurementRecord) {
	f.post(streaming.TypeMeasurementAdded, rec)
}

func (f *Feed) RecordRemoved(id string) {
	f.post(streaming.TypeMeasurementRemoved, streaming.RemovedPayload{ID: id})
}

func (f *Feed) HistoryCleared() {
	f.post(streaming.TypeHistoryCleared, struct{}{})
}
