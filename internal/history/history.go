// Package history keeps the operator's finalized measurements, most recent
// first, and persists them across restarts together with the preferred
// distance unit.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/pkg/core"
)

const (
	// HistoryKey is the storage key of the serialized record list.
	HistoryKey = "measurementHistory"
	// UnitKey is the storage key of the preferred unit.
	UnitKey = "measurementUnitType"

	idPrefix = "m-"
)

// Storage is the durable key-value store the history persists to.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Sink is told about every change to the history.
type Sink interface {
	RecordAppended(rec core.MeasurementRecord)
	RecordRemoved(id string)
	HistoryCleared()
}

// Store is the in-memory history backed by Storage.
type Store struct {
	log     *slog.Logger
	storage Storage
	sinks   []Sink

	records []core.MeasurementRecord
	nextID  int
	unit    measure.Unit

	// unitStored is set once a unit was read from or written to storage.
	unitStored bool
}

// New creates a store and loads whatever storage already holds.
func New(s Storage, log *slog.Logger, sinks ...Sink) *Store {
	if log == nil {
		log = slog.Default()
	}
	st := &Store{
		log:     log.With("component", "history"),
		storage: s,
		sinks:   sinks,
		nextID:  1,
		unit:    measure.UnitMeter,
	}
	st.Reload()
	st.loadUnit()
	return st
}

// AddSink registers another sink.
func (s *Store) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// NextID hands out the next record id.
func (s *Store) NextID() string {
	id := idPrefix + strconv.Itoa(s.nextID)
	s.nextID++
	return id
}

// List returns the records, most recent first.
func (s *Store) List() []core.MeasurementRecord {
	return append([]core.MeasurementRecord(nil), s.records...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns the record with id.
func (s *Store) Get(id string) (core.MeasurementRecord, bool) {
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return core.MeasurementRecord{}, false
}

// Append puts rec at the front and persists the list.
func (s *Store) Append(rec core.MeasurementRecord) error {
	s.records = append([]core.MeasurementRecord{rec}, s.records...)
	s.bumpNextID(rec.ID)
	for _, sink := range s.sinks {
		sink.RecordAppended(rec)
	}
	return s.persist()
}

// Remove drops the record with id. It reports whether one was found.
func (s *Store) Remove(id string) (bool, error) {
	var kept []core.MeasurementRecord
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(s.records) {
		return false, nil
	}
	s.records = kept
	for _, sink := range s.sinks {
		sink.RecordRemoved(id)
	}
	return true, s.persist()
}

// Clear drops every record, erases the stored list and restarts ids.
func (s *Store) Clear() error {
	s.records = nil
	s.nextID = 1
	for _, sink := range s.sinks {
		sink.HistoryCleared()
	}
	if err := s.storage.Remove(HistoryKey); err != nil {
		s.log.Error("Failed to erase measurement history", "error", err)
		return fmt.Errorf("failed to erase history: %w", err)
	}
	return nil
}

// Reload replaces the in-memory list with the stored one. Unreadable data
// leaves the history empty; Reload never fails.
func (s *Store) Reload() {
	s.records = nil
	s.nextID = 1

	raw, ok, err := s.storage.Get(HistoryKey)
	if err != nil {
		s.log.Warn("Failed to read measurement history", "error", err)
		return
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}

	var records []core.MeasurementRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.log.Warn("Discarding unreadable measurement history", "error", err)
		return
	}
	s.records = records
	for _, r := range records {
		s.bumpNextID(r.ID)
	}
	s.log.Debug("Measurement history loaded", "count", len(records), "nextId", s.nextID)
}

// Unit is the preferred distance unit.
func (s *Store) Unit() measure.Unit {
	return s.unit
}

// SetUnit changes and persists the preferred unit.
func (s *Store) SetUnit(u measure.Unit) error {
	s.unit = u
	s.unitStored = true
	if err := s.storage.Set(UnitKey, string(u)); err != nil {
		s.log.Error("Failed to store measurement unit", "error", err)
		return fmt.Errorf("failed to store unit: %w", err)
	}
	return nil
}

func (s *Store) loadUnit() {
	raw, ok, err := s.storage.Get(UnitKey)
	if err != nil || !ok {
		return
	}
	u, err := measure.ParseUnit(raw)
	if err != nil {
		s.log.Warn("Ignoring stored measurement unit", "unit", raw)
		return
	}
	s.unit = u
	s.unitStored = true
}

// SetDefaultUnit changes the unit only when none has been stored yet. The
// default is not persisted.
func (s *Store) SetDefaultUnit(u measure.Unit) {
	if !s.unitStored {
		s.unit = u
	}
}

func (s *Store) persist() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.storage.Set(HistoryKey, string(data)); err != nil {
		s.log.Error("Failed to persist measurement history", "error", err)
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// bumpNextID keeps ids unique after records with numbered ids are loaded.
func (s *Store) bumpNextID(id string) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, idPrefix))
	if err != nil || !strings.HasPrefix(id, idPrefix) {
		return
	}
	if n >= s.nextID {
		s.nextID = n + 1
	}
}
