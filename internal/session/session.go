// Package session opens the durable side of a viewer session: the key-value
// storage the history persists to and the sinks that follow it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/history"
	"github.com/minesight/tilecore/internal/influx"
	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/internal/storage"
	gormstorage "github.com/minesight/tilecore/internal/storage/gorm"
	"github.com/minesight/tilecore/internal/storage/websocket"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/rs/zerolog"
)

// ErrNoArchive is returned when the archive is required but storage has no
// database.
var ErrNoArchive = errors.New("archive needs a sqlite or postgres storage backend")

// Needs says which optional sinks a caller cannot do without.
type Needs int

const (
	NeedArchive Needs = 1 << iota
	NeedFeed
)

// Source is the history a live feed reports on.
type Source interface {
	Unit() measure.Unit
	List() []core.MeasurementRecord
	AddSink(history.Sink)
}

// Session is the opened storage plus the sinks configured for it.
type Session struct {
	KV      storage.KV
	Archive *gormstorage.Archive
	Influx  *influx.Manager
	Feed    *websocket.Feed

	needs Needs
	flush time.Duration
	log   *slog.Logger
	zl    zerolog.Logger
}

// Open opens storage and the archive and influx sinks configured for it.
// The archive writer is not started; callers that keep the session open
// start it themselves.
func Open(ctx context.Context, needs Needs, log *slog.Logger, zl zerolog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := config.GetStorageConfig()
	opened, err := storage.Open(cfg, zl)
	if err != nil {
		return nil, err
	}
	s := &Session{KV: opened.KV, needs: needs, flush: cfg.FlushInterval, log: log, zl: zl}

	withArchive := needs&NeedArchive != 0
	if opened.DB != nil && (cfg.Archive || withArchive) {
		s.Archive, err = gormstorage.NewArchive(opened.DB, zl)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	if withArchive && s.Archive == nil {
		_ = s.Close()
		return nil, ErrNoArchive
	}

	if config.GetBool("influx.enabled") {
		m := influx.NewManager(zl, config.GetString("influx.backupPath"))
		if err := m.Connect(ctx); err != nil {
			log.Warn("Influx sink disabled", "error", err)
		} else {
			s.Influx = m
		}
	}
	return s, nil
}

// StartArchive runs the archive writer on the configured flush interval.
// Without an archive or an interval, records are written on Close.
func (s *Session) StartArchive() {
	if s.Archive == nil || s.flush <= 0 {
		return
	}
	s.Archive.Start(s.flush)
}

// Sinks lists the opened sinks a history store reports to. The live feed is
// attached separately because it announces the history first.
func (s *Session) Sinks() []history.Sink {
	var sinks []history.Sink
	if s.Archive != nil {
		sinks = append(sinks, s.Archive)
	}
	if s.Influx != nil {
		sinks = append(sinks, s.Influx)
	}
	return sinks
}

// AttachFeed connects the live feed when it is needed or enabled, announces
// src's history and subscribes the feed to it. A feed that is only enabled
// and fails to connect is logged and skipped.
func (s *Session) AttachFeed(src Source) error {
	required := s.needs&NeedFeed != 0
	if !required && !config.GetBool("stream.enabled") {
		return nil
	}
	err := s.openFeed(src)
	if err != nil && !required {
		s.log.Warn("Live feed disabled", "error", err)
		return nil
	}
	return err
}

func (s *Session) openFeed(src Source) error {
	f := websocket.New(websocket.Config{
		URL:    config.GetString("stream.url"),
		Secret: config.GetString("stream.secret"),
	}, s.log)
	if err := f.Open(); err != nil {
		return err
	}
	err := f.StartSession(config.GetString("stream.session"), string(src.Unit()), src.List())
	if err != nil {
		_ = f.Close()
		return err
	}
	s.Feed = f
	src.AddSink(f)
	return nil
}

// Close ends the feed session, flushes the archive and releases storage.
func (s *Session) Close() error {
	var errs []error
	if s.Feed != nil {
		errs = append(errs, s.Feed.EndSession(), s.Feed.Close())
	}
	if s.Archive != nil {
		errs = append(errs, s.Archive.Close())
	}
	if s.Influx != nil {
		errs = append(errs, s.Influx.Close())
	}
	errs = append(errs, s.KV.Close())
	return errors.Join(errs...)
}
