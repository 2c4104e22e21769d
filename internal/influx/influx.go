// Package influx reports finalized measurements to InfluxDB, falling back to
// a gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// MeasurementName is the InfluxDB measurement of finalized records.
	MeasurementName = "measurement"
	// EventName is the InfluxDB measurement of history removals.
	EventName = "measurement_event"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles the InfluxDB connection and writes. It satisfies the
// history sink contract so it can be attached to a history store.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
	now        func() time.Time
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log.With().Str("component", "influx").Logger(),
		BackupPath: backupPath,
		now:        time.Now,
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points are written to the backup file instead.
func (m *Manager) Connect(ctx context.Context) error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	m.IsValid = err == nil && running

	if !m.IsValid {
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Str("bucket", m.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgName := viper.GetString("influx.org")

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

	// measurements are kept for a year
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 365,
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid && m.Writer != nil {
		m.Writer.WritePoint(point)
		return nil
	}
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// MeasurementPoint converts a finalized record into a point tagged by kind.
// Coordinate values become lon/lat/height fields, scalars a value field.
func MeasurementPoint(rec core.MeasurementRecord) *influxdb2_write.Point {
	tags := map[string]string{
		"kind": string(rec.Kind),
		"id":   rec.ID,
	}
	fields := map[string]any{
		"text":   rec.DisplayText,
		"points": len(rec.Points),
	}
	if rec.Value.IsCoord() && len(rec.Value.Coords) == 3 {
		fields["lon"] = rec.Value.Coords[0]
		fields["lat"] = rec.Value.Coords[1]
		fields["height"] = rec.Value.Coords[2]
	} else {
		fields["value"] = rec.Value.Scalar
	}
	return influxdb2_write.NewPoint(MeasurementName, tags, fields, rec.Timestamp)
}

// EventPoint records a removal ("removed") or a full clear ("cleared").
func EventPoint(action, id string, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(EventName).
		AddTag("action", action).
		AddField("count", 1).
		SetTime(at)
	if id != "" {
		p.AddTag("id", id)
	}
	return p
}

func (m *Manager) RecordAppended(rec core.MeasurementRecord) {
	if err := m.WritePoint(MeasurementPoint(rec)); err != nil {
		m.Logger.Warn().Err(err).Str("id", rec.ID).Msg("Failed to report measurement")
	}
}

func (m *Manager) RecordRemoved(id string) {
	if err := m.WritePoint(EventPoint("removed", id, m.now())); err != nil {
		m.Logger.Warn().Err(err).Str("id", id).Msg("Failed to report removal")
	}
}

func (m *Manager) HistoryCleared() {
	if err := m.WritePoint(EventPoint("cleared", "", m.now())); err != nil {
		m.Logger.Warn().Err(err).Msg("Failed to report history clear")
	}
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	var err error
	if m.BackupWriter != nil {
		err = m.BackupWriter.Close()
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		if cerr := m.backupFile.Close(); err == nil {
			err = cerr
		}
		m.backupFile = nil
	}
	return err
}
