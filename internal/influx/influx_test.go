package influx

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func lineOf(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func polylineRecord() core.MeasurementRecord {
	return core.MeasurementRecord{
		ID:          "m-1",
		Kind:        core.KindPolyline,
		Value:       core.ScalarValue(20),
		DisplayText: "Distance: 20.00 m",
		Timestamp:   at,
		Points:      []core.Point3D{{X: 0}, {X: 20}},
	}
}

func TestMeasurementPoint_Scalar(t *testing.T) {
	line := lineOf(MeasurementPoint(polylineRecord()))

	assert.Contains(t, line, MeasurementName+",")
	assert.Contains(t, line, "kind=polyline")
	assert.Contains(t, line, "id=m-1")
	assert.Contains(t, line, "value=20")
	assert.Contains(t, line, "points=2i")
	assert.Contains(t, line, `text="Distance: 20.00 m"`)
	assert.NotContains(t, line, "lon=")
}

func TestMeasurementPoint_Coordinates(t *testing.T) {
	rec := core.MeasurementRecord{
		ID:        "m-2",
		Kind:      core.KindPoint,
		Value:     core.CoordValue(113.5, 23.25, 12.5),
		Timestamp: at,
		Points:    []core.Point3D{{X: 1, Y: 2, Z: 3}},
	}
	line := lineOf(MeasurementPoint(rec))

	assert.Contains(t, line, "kind=point")
	assert.Contains(t, line, "lon=113.5")
	assert.Contains(t, line, "lat=23.25")
	assert.Contains(t, line, "height=12.5")
	assert.NotContains(t, line, "value=")
}

func TestEventPoint(t *testing.T) {
	line := lineOf(EventPoint("removed", "m-3", at))
	assert.Contains(t, line, EventName+",")
	assert.Contains(t, line, "action=removed")
	assert.Contains(t, line, "id=m-3")

	line = lineOf(EventPoint("cleared", "", at))
	assert.Contains(t, line, "action=cleared")
	assert.NotContains(t, line, "id=")
}

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), filepath.Join(t.TempDir(), "backup.lp.gz"))
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestWritePoint_NoTarget(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(EventPoint("cleared", "", at)))
}

func TestUnreachableServerWritesBackup(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", true)
	viper.Set("influx.protocol", "http")
	viper.Set("influx.host", "127.0.0.1")
	viper.Set("influx.port", "1")
	viper.Set("influx.bucket", "measurements")

	backup := filepath.Join(t.TempDir(), "backup.lp.gz")
	m := NewManager(zerolog.Nop(), backup)
	m.now = func() time.Time { return at }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	m.RecordAppended(polylineRecord())
	m.RecordRemoved("m-1")
	m.HistoryCleared()
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "kind=polyline")
	assert.Contains(t, out, "action=removed")
	assert.Contains(t, out, "action=cleared")
}
