package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/history"
	"github.com/minesight/tilecore/internal/session"
	"github.com/minesight/tilecore/internal/storage"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/streaming"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	resetFlags(rootCmd)
	return out.String(), err
}

func configDirWith(t *testing.T, body string) string {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
	return dir
}

func TestMeasureCommand(t *testing.T) {
	dir := configDirWith(t, `{}`)

	out, err := run(t, "--config", dir, "measure", "polyline", "[[6378137,0,0],[6378137,30,40]]")
	require.NoError(t, err)
	assert.Equal(t, "Distance: 50.00 m\n", out)

	out, err = run(t, "--config", dir, "measure", "polyline", "[[6378137,0,0],[6378137,30,40]]", "--unit", "kilometer")
	require.NoError(t, err)
	assert.Equal(t, "Distance: 0.050 km\n", out)

	_, err = run(t, "--config", dir, "measure", "circle", "[[0,0,0]]")
	assert.Error(t, err)

	_, err = run(t, "--config", dir, "measure", "polyline", "not json")
	assert.Error(t, err)
}

func TestMeasureCommand_ConfiguredUnit(t *testing.T) {
	dir := configDirWith(t, `{"measurement": {"unit": "kilometer"}}`)

	out, err := run(t, "--config", dir, "measure", "polyline", "[[6378137,0,0],[6378137,30,40]]")
	require.NoError(t, err)
	assert.Equal(t, "Distance: 0.050 km\n", out)
}

func TestTransformCommand(t *testing.T) {
	dir := configDirWith(t, `{}`)

	out, err := run(t, "--config", dir, "transform", "--position", "0,0,0", "--rotation", "0,0,0")
	require.NoError(t, err)
	assert.Contains(t, out, "Position: 0.000000, 0.000000, 0.00 m")
	assert.Contains(t, out, "6378137.000000")

	out, err = run(t, "--config", dir, "transform")
	require.NoError(t, err)
	assert.Contains(t, out, "Position: 113.323000, 23.106000, 50.00 m")
	assert.Contains(t, out, "Rotation: 15.00, 0.00, 0.00 deg")

	_, err = run(t, "--config", dir, "transform", "--position", "200,0")
	assert.Error(t, err)
}

func TestPlaneCommand(t *testing.T) {
	dir := configDirWith(t, `{}`)

	out, err := run(t, "--config", dir, "plane", "--axis", "y", "--offset", "2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Normal: 0, 1, 0\n")
	assert.Contains(t, out, "Offset: 2.5\n")
	assert.Contains(t, out, "Edge: rgba(255, 102, 0, 1.00) width 1\n")
}

func seedHistory(t *testing.T, dbPath string, records ...core.MeasurementRecord) {
	t.Helper()
	opened, err := storage.Open(config.StorageConfig{Type: "sqlite", SqlitePath: dbPath}, zerolog.Nop())
	require.NoError(t, err)
	store := history.New(opened.KV, nil)
	for _, r := range records {
		require.NoError(t, store.Append(r))
	}
	require.NoError(t, opened.KV.Close())
}

func polyline(id string, at time.Time) core.MeasurementRecord {
	return core.MeasurementRecord{
		ID:          id,
		Kind:        core.KindPolyline,
		Value:       core.ScalarValue(50),
		DisplayText: "Distance: 50.00 m",
		Timestamp:   at,
		Points:      []core.Point3D{{X: 6378137}, {X: 6378137, Y: 30, Z: 40}},
	}
}

func TestHistoryAndArchiveCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tilecore.db")
	dir := configDirWith(t, `{"storage": {"type": "sqlite", "sqlitePath": "`+filepath.ToSlash(dbPath)+`", "archive": true}}`)

	now := time.Now()
	seedHistory(t, dbPath, polyline("m-1", now.Add(-time.Minute)), polyline("m-2", now))

	out, err := run(t, "--config", dir, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "m-1")
	assert.Contains(t, out, "m-2")
	assert.Contains(t, out, "Distance: 50.00 m")

	out, err = run(t, "--config", dir, "history", "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "m-2"`)

	out, err = run(t, "--config", dir, "archive", "sync")
	require.NoError(t, err)
	assert.Equal(t, "Archived 2 measurements\n", out)

	out, err = run(t, "--config", dir, "history", "rm", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Removed m-1\n", out)

	_, err = run(t, "--config", dir, "history", "rm", "m-1")
	assert.Error(t, err)

	out, err = run(t, "--config", dir, "archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "m-2")
	assert.NotContains(t, out, "m-1", "removed records are soft-deleted from the archive")

	out, err = run(t, "--config", dir, "history", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 measurements\n", out)

	out, err = run(t, "--config", dir, "history", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "m-2")
}

func TestHistoryUnitCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tilecore.db")
	dir := configDirWith(t, `{"storage": {"type": "sqlite", "sqlitePath": "`+filepath.ToSlash(dbPath)+`"}}`)

	out, err := run(t, "--config", dir, "history", "unit")
	require.NoError(t, err)
	assert.Equal(t, "meter\n", out)

	out, err = run(t, "--config", dir, "history", "unit", "kilometer")
	require.NoError(t, err)
	assert.Equal(t, "kilometer\n", out)

	out, err = run(t, "--config", dir, "history", "unit")
	require.NoError(t, err)
	assert.Equal(t, "kilometer\n", out)

	_, err = run(t, "--config", dir, "history", "unit", "furlong")
	assert.Error(t, err)
}

func TestArchiveNeedsDatabase(t *testing.T) {
	dir := configDirWith(t, `{"storage": {"type": "memory"}}`)

	_, err := run(t, "--config", dir, "archive", "list")
	assert.ErrorIs(t, err, session.ErrNoArchive)
}

// collector acks every start and end of session and remembers message types.
func collector(t *testing.T) (string, func() []string) {
	t.Helper()
	var (
		mu    sync.Mutex
		types []string
	)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if json.Unmarshal(msg, &env) != nil {
				continue
			}
			mu.Lock()
			types = append(types, env.Type)
			mu.Unlock()
			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				ack, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				_ = c.WriteMessage(ws.TextMessage, ack)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), types...)
	}
}

func TestHistoryPushAndStream(t *testing.T) {
	url, received := collector(t)
	dbPath := filepath.Join(t.TempDir(), "tilecore.db")
	dir := configDirWith(t, `{
		"storage": {"type": "sqlite", "sqlitePath": "`+filepath.ToSlash(dbPath)+`", "archive": false},
		"stream": {"enabled": true, "url": "`+url+`"}
	}`)
	seedHistory(t, dbPath, polyline("m-1", time.Now()))

	out, err := run(t, "--config", dir, "history", "push")
	require.NoError(t, err)
	assert.Equal(t, "Sent 1 measurements\n", out)

	_, err = run(t, "--config", dir, "history", "rm", "m-1")
	require.NoError(t, err)

	assert.Equal(t, []string{
		streaming.TypeStartSession, streaming.TypeEndSession,
		streaming.TypeStartSession, streaming.TypeMeasurementRemoved, streaming.TypeEndSession,
	}, received())
}

func TestHistoryPushNeedsCollector(t *testing.T) {
	dir := configDirWith(t, `{"storage": {"type": "memory"}, "stream": {"url": "ws://127.0.0.1:1/feed"}}`)

	_, err := run(t, "--config", dir, "history", "push")
	assert.Error(t, err)
}
