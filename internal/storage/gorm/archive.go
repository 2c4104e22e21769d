package gormstorage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/minesight/tilecore/internal/geo"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArchivedMeasurement is a finalized measurement. Rows removed from the
// history are soft-deleted and stay reachable with Unscoped.
type ArchivedMeasurement struct {
	gorm.Model
	RecordID    string         `json:"recordId" gorm:"index;size:64"`
	Kind        string         `json:"kind" gorm:"size:16"`
	// Scalar holds distances and areas; Coords is set for points only.
	Scalar      float64        `json:"scalar"`
	Coords      datatypes.JSON `json:"coords,omitempty"`
	DisplayText string         `json:"displayText" gorm:"size:255"`
	Coord       string         `json:"coord" gorm:"size:255"`
	Points      datatypes.JSON `json:"points"`
	// Geometry is WKB in lon/lat/height.
	Geometry   []byte    `json:"-"`
	MeasuredAt time.Time `json:"measuredAt" gorm:"index"`
}

// ArchiveModels lists the tables the archive migrates.
var ArchiveModels = []interface{}{
	&ArchivedMeasurement{},
}

// Archive batches finalized measurements and writes them in the background.
type Archive struct {
	db  *gorm.DB
	log zerolog.Logger

	mu       sync.Mutex
	pending  []ArchivedMeasurement
	stopChan chan struct{}
	done     chan struct{}
}

// NewArchive migrates the archive table.
func NewArchive(db *gorm.DB, log zerolog.Logger) (*Archive, error) {
	if err := db.AutoMigrate(ArchiveModels...); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	return &Archive{db: db, log: log}, nil
}

// ToArchived converts a record for storage.
func ToArchived(rec core.MeasurementRecord) (ArchivedMeasurement, error) {
	points, err := json.Marshal(rec.Points)
	if err != nil {
		return ArchivedMeasurement{}, fmt.Errorf("failed to encode points: %w", err)
	}
	a := ArchivedMeasurement{
		RecordID:    rec.ID,
		Kind:        string(rec.Kind),
		Scalar:      rec.Value.Scalar,
		DisplayText: rec.DisplayText,
		Coord:       rec.Coord,
		Points:      datatypes.JSON(points),
		MeasuredAt:  rec.Timestamp,
	}
	if rec.Value.IsCoord() {
		coords, err := json.Marshal(rec.Value.Coords)
		if err != nil {
			return ArchivedMeasurement{}, fmt.Errorf("failed to encode coordinates: %w", err)
		}
		a.Coords = datatypes.JSON(coords)
	}
	if g, err := geo.RecordGeometry(rec); err == nil {
		a.Geometry = g.AsBinary()
	}
	return a, nil
}

// MeasurementValue rebuilds the record value of a row.
func (m ArchivedMeasurement) MeasurementValue() (core.MeasurementValue, error) {
	if len(m.Coords) == 0 || string(m.Coords) == "null" {
		return core.ScalarValue(m.Scalar), nil
	}
	var coords []float64
	if err := json.Unmarshal(m.Coords, &coords); err != nil {
		return core.MeasurementValue{}, fmt.Errorf("failed to decode coordinates: %w", err)
	}
	return core.MeasurementValue{Coords: coords}, nil
}

// Start runs the background writer, flushing every interval until Close.
func (a *Archive) Start(interval time.Duration) {
	a.stopChan = make(chan struct{})
	a.done = make(chan struct{})
	go func() {
		defer close(a.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopChan:
				return
			case <-ticker.C:
				if err := a.Flush(); err != nil {
					a.log.Error().Err(err).Msg("Failed to flush measurement archive")
				}
			}
		}
	}()
}

// Pending is the number of records waiting for the next flush.
func (a *Archive) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush writes every pending record.
func (a *Archive) Flush() error {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := a.db.CreateInBatches(batch, 500).Error; err != nil {
		return fmt.Errorf("failed to archive %d measurements: %w", len(batch), err)
	}
	a.log.Debug().Int("count", len(batch)).Msg("Archived measurements")
	return nil
}

// RecordAppended queues a finalized record.
func (a *Archive) RecordAppended(rec core.MeasurementRecord) {
	row, err := ToArchived(rec)
	if err != nil {
		a.log.Error().Err(err).Str("id", rec.ID).Msg("Failed to convert measurement")
		return
	}
	a.mu.Lock()
	a.pending = append(a.pending, row)
	a.mu.Unlock()
}

// RecordRemoved soft-deletes the archived rows of a record.
func (a *Archive) RecordRemoved(id string) {
	if err := a.Flush(); err != nil {
		a.log.Error().Err(err).Msg("Failed to flush measurement archive")
	}
	if err := a.db.Where("record_id = ?", id).Delete(&ArchivedMeasurement{}).Error; err != nil {
		a.log.Error().Err(err).Str("id", id).Msg("Failed to remove archived measurement")
	}
}

// HistoryCleared soft-deletes every archived row.
func (a *Archive) HistoryCleared() {
	if err := a.Flush(); err != nil {
		a.log.Error().Err(err).Msg("Failed to flush measurement archive")
	}
	if err := a.db.Where("1 = 1").Delete(&ArchivedMeasurement{}).Error; err != nil {
		a.log.Error().Err(err).Msg("Failed to clear measurement archive")
	}
}

// List returns the most recent archived measurements first.
func (a *Archive) List(limit int) ([]ArchivedMeasurement, error) {
	var rows []ArchivedMeasurement
	q := a.db.Order("measured_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list archived measurements: %w", err)
	}
	return rows, nil
}

// Close stops the writer and flushes what is left.
func (a *Archive) Close() error {
	if a.stopChan != nil {
		close(a.stopChan)
		<-a.done
		a.stopChan = nil
	}
	return a.Flush()
}
