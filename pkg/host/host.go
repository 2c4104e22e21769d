// Package host is the entry point for applications embedding the viewer
// engine. A Host owns one viewer session: it opens the configured storage
// and sinks, builds the viewer around the application's renderer and answers
// UI commands through the dispatcher.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
	"time"

	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/dispatcher"
	"github.com/minesight/tilecore/internal/handlers"
	"github.com/minesight/tilecore/internal/logging"
	"github.com/minesight/tilecore/internal/session"
	"github.com/minesight/tilecore/internal/viewer"
	"github.com/minesight/tilecore/pkg/scene"
)

// Commands answered by the host itself.
const (
	CmdCommands    = "host.commands"
	CmdModelUnload = "model.unload"
)

// Options configures a Host.
type Options struct {
	Renderer scene.Renderer
	// ConfigDir holds tilecore.cfg.json. Defaults apply when it is missing.
	ConfigDir string
	// LogOutput receives text logs. Nil means stdout.
	LogOutput io.Writer
}

// Host is one embedded viewer session. Commands must be issued from one
// goroutine at a time.
type Host struct {
	viewer     *viewer.Context
	dispatcher *dispatcher.Dispatcher
	session    *session.Session
	logs       *logging.SlogManager
	log        *slog.Logger

	// attrs is the session state attached to log records, refreshed after
	// every command so loggers on other goroutines never touch the viewer.
	attrs  atomic.Pointer[[]slog.Attr]
	closed bool
}

// New loads configuration from opts.ConfigDir and builds the session.
func New(ctx context.Context, opts Options) (*Host, error) {
	dir := opts.ConfigDir
	if dir == "" {
		dir = "."
	}
	cfgErr := config.Load(dir)
	level := config.GetString("logLevel")

	h := &Host{logs: logging.NewSlogManager()}
	logOpts := logging.Options{File: opts.LogOutput, Level: level, Context: h.logContext}
	if config.GetBool("graylog.enabled") {
		logOpts.GraylogAddress = config.GetString("graylog.address")
	}
	if err := h.logs.Setup(logOpts); err != nil {
		h.logs.Logger().Warn("Graylog unavailable", "error", err)
	}
	h.log = h.logs.Logger()
	if cfgErr != nil {
		h.log.Warn("Using default configuration", "dir", dir, "error", cfgErr)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	zl := logging.NewZerolog(out, level)

	sess, err := session.Open(ctx, 0, h.log, zl)
	if err != nil {
		_ = h.logs.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	h.session = sess

	h.viewer = viewer.New(viewer.Options{
		Renderer:  opts.Renderer,
		Storage:   sess.KV,
		Sinks:     sess.Sinks(),
		Placement: config.GetDefaultPlacement(),
		Section:   config.GetSectionConfig(),
		Unit:      config.GetMeasurementUnit(),
		Logger:    h.log,
	})
	h.refreshAttrs()
	sess.StartArchive()
	if err := sess.AttachFeed(h.viewer.Store()); err != nil {
		_ = h.Close()
		return nil, err
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	h.dispatcher = d
	handlers.NewService(h.viewer, h.log).Register(d)
	h.registerHostCommands(d)

	h.log.Info("Host ready", "commands", len(d.Commands()))
	return h, nil
}

func (h *Host) logContext() []slog.Attr {
	if p := h.attrs.Load(); p != nil {
		return *p
	}
	return nil
}

func (h *Host) refreshAttrs() {
	attrs := h.viewer.LogAttrs()
	h.attrs.Store(&attrs)
}

func (h *Host) registerHostCommands(d *dispatcher.Dispatcher) {
	d.Register(CmdCommands, func(dispatcher.Event) (any, error) {
		cmds := d.Commands()
		slices.Sort(cmds)
		return cmds, nil
	})
	d.Register(CmdModelUnload, func(dispatcher.Event) (any, error) {
		h.viewer.UnloadModel()
		return nil, nil
	}, dispatcher.Logged())
}

// LoadModel hands a loaded tileset to the session.
func (h *Host) LoadModel(ts scene.Tileset) error {
	defer h.refreshAttrs()
	return h.viewer.LoadModel(ts)
}

// Dispatch runs command with args and returns the handler's result.
func (h *Host) Dispatch(command string, args ...string) (any, error) {
	if h.closed {
		return nil, errors.New("host closed")
	}
	defer h.refreshAttrs()
	return h.dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// Call runs command and encodes the outcome for a UI bridge:
// ["ok", command, result] or ["error", command, message].
func (h *Host) Call(command string, args ...string) string {
	result, err := h.Dispatch(command, args...)
	return FormatResponse(command, result, err)
}

// FormatResponse encodes a command outcome as a JSON array.
func FormatResponse(command string, result any, err error) string {
	reply := []any{"ok", command}
	if err != nil {
		reply = []any{"error", command, err.Error()}
	} else if result != nil {
		reply = append(reply, result)
	}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		data, _ = json.Marshal([]any{"error", command, mErr.Error()})
	}
	return string(data)
}

// Close tears the session down and releases storage and sinks.
func (h *Host) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.viewer.Destroy()
	if h.dispatcher != nil {
		h.dispatcher.Close()
	}
	err := h.session.Close()
	return errors.Join(err, h.logs.Close())
}
