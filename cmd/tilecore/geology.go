package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/minesight/tilecore/internal/geology"
	"github.com/spf13/cobra"
)

var (
	geologyDensity float64
	geologyJSON    bool
)

func loadGeology(path string) (geology.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return geology.Model{}, err
	}
	defer f.Close()
	return geology.Load(f)
}

var geologyCmd = &cobra.Command{
	Use:   "geology <model.json>",
	Short: "Estimate orebody reserves and summarize borehole stratigraphy",
	Long: `Read a geology model holding "boreholes" and "orebodies" and print the
reserve of each orebody, estimated from its bounding box, followed by layer
statistics per lithology.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadGeology(args[0])
		if err != nil {
			return err
		}
		report := m.Report(geologyDensity)
		Logger.Debug("Geology model loaded", "boreholes", report.Boreholes, "orebodies", report.Orebodies)

		out := cmd.OutOrStdout()
		if geologyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OREBODY\tVOLUME m³\tORE t\tGRADE %\tMETAL t")
		for _, o := range m.Orebodies {
			r := report.Reserves[o.ID]
			fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.2f\t%.1f\n", o.ID, r.Volume, r.Weight, r.Grade, r.MetalContent)
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LITHOLOGY\tLAYERS\tTOTAL m\tAVERAGE m")
		for _, s := range report.Stratigraphy {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", s.Lithology, s.Count, s.TotalThickness, s.AverageThickness)
		}
		return tw.Flush()
	},
}

func init() {
	geologyCmd.Flags().Float64Var(&geologyDensity, "density", geology.DefaultDensity, "ore density in t/m³")
	geologyCmd.Flags().BoolVar(&geologyJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(geologyCmd)
}
