// Package handlers turns UI commands into viewer operations.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/minesight/tilecore/internal/dispatcher"
	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/internal/section"
	"github.com/minesight/tilecore/internal/viewer"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/minesight/tilecore/pkg/scene"
)

// Command names understood by the viewer.
const (
	CmdModelPlace      = "model.place"
	CmdModelReset      = "model.reset"
	CmdMeasureStart    = "measure.start"
	CmdMeasurePick     = "measure.pick"
	CmdMeasureMove     = "measure.move"
	CmdMeasureFinalize = "measure.finalize"
	CmdMeasureCancel   = "measure.cancel"
	CmdMeasurePause    = "measure.pause"
	CmdMeasureResume   = "measure.resume"
	CmdMeasureUnit     = "measure.unit"
	CmdHistoryList     = "history.list"
	CmdHistoryRemove   = "history.remove"
	CmdHistoryClear    = "history.clear"
	CmdSectionEnable   = "section.enable"
	CmdSectionUpdate   = "section.update"
	CmdSectionReset    = "section.reset"
	CmdFeatureList     = "feature.list"
	CmdFeatureVisible  = "feature.visible"
	CmdFeatureOpacity  = "feature.opacity"
)

// ErrArgs is wrapped by every argument parsing failure.
var ErrArgs = errors.New("invalid arguments")

// Service provides handler methods for the viewer commands.
type Service struct {
	viewer *viewer.Context
	log    *slog.Logger
}

// NewService creates a Service operating on v.
func NewService(v *viewer.Context, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{viewer: v, log: log.With("component", "handlers")}
}

// Register adds every viewer command to d. Pointer moves are not logged.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdModelPlace, s.PlaceModel, dispatcher.Logged())
	d.Register(CmdModelReset, s.ResetModel, dispatcher.Logged())

	d.Register(CmdMeasureStart, s.StartMeasurement, dispatcher.Logged())
	d.Register(CmdMeasurePick, s.Pick, dispatcher.Logged())
	d.Register(CmdMeasureMove, s.Move)
	d.Register(CmdMeasureFinalize, s.FinalizeMeasurement, dispatcher.Logged())
	d.Register(CmdMeasureCancel, func(dispatcher.Event) (any, error) {
		return s.viewer.CancelMeasurement(), nil
	}, dispatcher.Logged())
	d.Register(CmdMeasurePause, func(dispatcher.Event) (any, error) {
		return s.viewer.PauseMeasurement(), nil
	}, dispatcher.Logged())
	d.Register(CmdMeasureResume, func(dispatcher.Event) (any, error) {
		return s.viewer.ResumeMeasurement(), nil
	}, dispatcher.Logged())
	d.Register(CmdMeasureUnit, s.SetUnit, dispatcher.Logged())

	d.Register(CmdHistoryList, func(dispatcher.Event) (any, error) {
		return s.viewer.History(), nil
	})
	d.Register(CmdHistoryRemove, s.RemoveRecord, dispatcher.Logged())
	d.Register(CmdHistoryClear, func(dispatcher.Event) (any, error) {
		return nil, s.viewer.ClearHistory()
	}, dispatcher.Logged())

	d.Register(CmdSectionEnable, s.EnableSection, dispatcher.Logged())
	d.Register(CmdSectionUpdate, s.UpdateSection, dispatcher.Logged())
	d.Register(CmdSectionReset, func(dispatcher.Event) (any, error) {
		if err := s.viewer.ResetSection(); err != nil {
			return nil, err
		}
		return s.viewer.SectionConfig(), nil
	}, dispatcher.Logged())

	d.Register(CmdFeatureList, func(dispatcher.Event) (any, error) {
		return s.viewer.Features(), nil
	})
	d.Register(CmdFeatureVisible, s.SetFeatureVisible, dispatcher.Logged())
	d.Register(CmdFeatureOpacity, s.SetFeatureOpacity, dispatcher.Logged())

	s.log.Debug("Viewer commands registered", "count", len(d.Commands()))
}

func argCount(e dispatcher.Event, want ...int) error {
	for _, n := range want {
		if len(e.Args) == n {
			return nil
		}
	}
	return fmt.Errorf("%w: %s expects %v arguments, got %d", ErrArgs, e.Command, want, len(e.Args))
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrArgs, i, err)
		}
		out[i] = f
	}
	return out, nil
}

func screenPoint(e dispatcher.Event) (scene.ScreenPoint, error) {
	if err := argCount(e, 2); err != nil {
		return scene.ScreenPoint{}, err
	}
	xy, err := parseFloats(e.Args)
	if err != nil {
		return scene.ScreenPoint{}, err
	}
	return scene.ScreenPoint{X: xy[0], Y: xy[1]}, nil
}

// PlaceModel takes lon, lat, height and optionally rx, ry, rz in degrees.
// Without a rotation the current one is kept.
func (s *Service) PlaceModel(e dispatcher.Event) (any, error) {
	if err := argCount(e, 3, 6); err != nil {
		return nil, err
	}
	v, err := parseFloats(e.Args)
	if err != nil {
		return nil, err
	}
	pos := core.Geodetic{Longitude: v[0], Latitude: v[1], Height: v[2]}
	if len(v) == 3 {
		err = s.viewer.MoveModel(pos)
	} else {
		err = s.viewer.PlaceModel(core.Placement{
			Position: pos,
			Rotation: core.Rotation{X: v[3], Y: v[4], Z: v[5]},
		})
	}
	if err != nil {
		return nil, err
	}
	return s.viewer.Placement(), nil
}

func (s *Service) ResetModel(dispatcher.Event) (any, error) {
	return s.viewer.ResetModel()
}

func (s *Service) StartMeasurement(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	kind, err := core.ParseMeasurementKind(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	if err := s.viewer.StartMeasurement(kind); err != nil {
		return nil, err
	}
	return s.viewer.MeasurementState().String(), nil
}

func (s *Service) Pick(e dispatcher.Event) (any, error) {
	p, err := screenPoint(e)
	if err != nil {
		return nil, err
	}
	return s.viewer.Pick(p), nil
}

// Move returns the live result, or nil while nothing can be previewed.
func (s *Service) Move(e dispatcher.Event) (any, error) {
	p, err := screenPoint(e)
	if err != nil {
		return nil, err
	}
	res, ok := s.viewer.Move(p)
	if !ok {
		return nil, nil
	}
	return res, nil
}

// FinalizeMeasurement returns the new record, or nil when the session was
// cancelled for lack of points.
func (s *Service) FinalizeMeasurement(dispatcher.Event) (any, error) {
	rec, ok := s.viewer.FinalizeMeasurement()
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (s *Service) SetUnit(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	u, err := measure.ParseUnit(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	return u, s.viewer.SetUnit(u)
}

func (s *Service) RemoveRecord(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	return s.viewer.RemoveRecord(e.Args[0])
}

func (s *Service) EnableSection(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	on, err := strconv.ParseBool(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	return on, s.viewer.EnableSection(on)
}

// UpdateSection takes one JSON object with any of direction, position,
// thickness, showPlane, color and opacity.
func (s *Service) UpdateSection(e dispatcher.Event) (any, error) {
	if err := argCount(e, 1); err != nil {
		return nil, err
	}
	var p section.Params
	if err := json.Unmarshal([]byte(e.Args[0]), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	if err := s.viewer.UpdateSection(p); err != nil {
		return nil, err
	}
	return s.viewer.SectionConfig(), nil
}

// SetFeatureVisible takes a feature id and a boolean. The id "*" targets
// every feature.
func (s *Service) SetFeatureVisible(e dispatcher.Event) (any, error) {
	if err := argCount(e, 2); err != nil {
		return nil, err
	}
	visible, err := strconv.ParseBool(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgs, err)
	}
	if e.Args[0] == "*" {
		if visible {
			return s.viewer.ShowAllFeatures(), nil
		}
		return s.viewer.HideAllFeatures(), nil
	}
	return visible, s.viewer.SetFeatureVisible(e.Args[0], visible)
}

// SetFeatureOpacity takes a feature id and a transparency percentage. The
// id "*" sets the global transparency.
func (s *Service) SetFeatureOpacity(e dispatcher.Event) (any, error) {
	if err := argCount(e, 2); err != nil {
		return nil, err
	}
	v, err := parseFloats(e.Args[1:])
	if err != nil {
		return nil, err
	}
	if e.Args[0] == "*" {
		return s.viewer.SetGlobalOpacity(v[0]), nil
	}
	return v[0], s.viewer.SetFeatureOpacity(e.Args[0], v[0])
}
