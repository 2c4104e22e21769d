package main

import (
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/geo"
	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/internal/section"
	"github.com/minesight/tilecore/internal/transform"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/spf13/cobra"
)

var (
	placePosition string
	placeRotation string
	placeCenter   string
	measureUnit   string
	planeAxis     string
	planeOffset   float64
)

func printMatrix(w io.Writer, m core.Matrix4) {
	for row := 0; row < 4; row++ {
		fmt.Fprintf(w, "%16.6f %16.6f %16.6f %16.6f\n", m.At(row, 0), m.At(row, 1), m.At(row, 2), m.At(row, 3))
	}
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Compute the model matrix for a placement",
	Long: `Compute the model matrix that puts a tileset's local origin at a
geodetic position with a rotation about the local east, north and up axes.
Unset flags take the configured default placement.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := config.GetDefaultPlacement()
		if cmd.Flags().Changed("position") {
			g, err := geo.GeodeticFromString(placePosition)
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			p.Position = g
		}
		if cmd.Flags().Changed("rotation") {
			r, err := geo.RotationFromString(placeRotation)
			if err != nil {
				return fmt.Errorf("rotation: %w", err)
			}
			p.Rotation = r
		}
		var center r3.Vector
		if placeCenter != "" {
			c, err := geo.Point3DFromString(placeCenter)
			if err != nil {
				return fmt.Errorf("center: %w", err)
			}
			center = c
		}

		m := transform.Compose(core.Identity4(), center, p)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Position: %.6f, %.6f, %.2f m\n", p.Position.Longitude, p.Position.Latitude, p.Position.Height)
		fmt.Fprintf(out, "Rotation: %.2f, %.2f, %.2f deg\n", p.Rotation.X, p.Rotation.Y, p.Rotation.Z)
		printMatrix(out, m)
		return nil
	},
}

var measureCmd = &cobra.Command{
	Use:   "measure <point|polyline|polygon> <points>",
	Short: "Measure cartesian points",
	Long: `Measure a point, a polyline length or a polygon area from ECEF points
given as a JSON array, for example '[[x1,y1,z1],[x2,y2,z2]]'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := core.ParseMeasurementKind(args[0])
		if err != nil {
			return err
		}
		points, err := geo.ParsePoints(args[1])
		if err != nil {
			return err
		}
		unit := config.GetMeasurementUnit()
		if measureUnit != "" {
			if unit, err = measure.ParseUnit(measureUnit); err != nil {
				return err
			}
		}

		res := measure.Compute(kind, points, unit)
		switch {
		case res.Kind == core.KindUnknown:
			return fmt.Errorf("cannot measure %s from these points", kind)
		case res.Kind == core.KindPoint:
			fmt.Fprintln(cmd.OutOrStdout(), res.Coord)
		default:
			fmt.Fprintln(cmd.OutOrStdout(), res.DisplayText)
		}
		return nil
	},
}

var planeCmd = &cobra.Command{
	Use:   "plane",
	Short: "Show the clipping plane of a section",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.GetSectionConfig()
		if cmd.Flags().Changed("axis") {
			cfg.Axis = core.SectionAxis(planeAxis)
		}
		if cmd.Flags().Changed("offset") {
			cfg.Offset = planeOffset
		}
		color, err := section.ParseColor(cfg.Color)
		if err != nil {
			return err
		}

		pl := section.DerivePlane(cfg)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Normal: %g, %g, %g\n", pl.Normal.X, pl.Normal.Y, pl.Normal.Z)
		fmt.Fprintf(out, "Offset: %g\n", pl.Offset)
		fmt.Fprintf(out, "Edge: rgba(%.0f, %.0f, %.0f, %.2f) width %g\n",
			color.R*255, color.G*255, color.B*255, color.A, cfg.Thickness)
		return nil
	},
}

func init() {
	transformCmd.Flags().StringVar(&placePosition, "position", "", "lon,lat[,height] in degrees and meters")
	transformCmd.Flags().StringVar(&placeRotation, "rotation", "", "rx,ry,rz in degrees")
	transformCmd.Flags().StringVar(&placeCenter, "center", "", "x,y,z of the tileset bounding center in ECEF meters")

	measureCmd.Flags().StringVar(&measureUnit, "unit", "", "meter or kilometer, default from configuration")

	planeCmd.Flags().StringVar(&planeAxis, "axis", "x", "x, y or z")
	planeCmd.Flags().Float64Var(&planeOffset, "offset", 0, "plane offset in meters")

	rootCmd.AddCommand(transformCmd, measureCmd, planeCmd)
}
