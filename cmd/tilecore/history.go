package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/history"
	"github.com/minesight/tilecore/internal/measure"
	"github.com/minesight/tilecore/internal/session"
	"github.com/minesight/tilecore/pkg/core"
	"github.com/spf13/cobra"
)

// cliSession is an opened session with the history store built on it.
type cliSession struct {
	*session.Session
	store *history.Store
}

func withSession(needs session.Needs, fn func(cmd *cobra.Command, args []string, s *cliSession) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		opened, err := session.Open(cmd.Context(), needs, Logger, zl)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, opened.Close())
		}()

		s := &cliSession{Session: opened, store: history.New(opened.KV, Logger, opened.Sinks()...)}
		s.store.SetDefaultUnit(config.GetMeasurementUnit())
		if err := opened.AttachFeed(s.store); err != nil {
			return err
		}
		return fn(cmd, args, s)
	}
}

func printRecords(w io.Writer, records []core.MeasurementRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tVALUE\tTIME")
	for _, r := range records {
		text := r.DisplayText
		if r.Kind == core.KindPoint {
			text = r.Coord
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, text, r.Timestamp.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and edit the stored measurement history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List measurements, most recent first",
	Args:  cobra.NoArgs,
	RunE: withSession(0, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		return printRecords(cmd.OutOrStdout(), s.store.List())
	}),
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the history as JSON",
	Args:  cobra.NoArgs,
	RunE: withSession(0, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(s.store.List())
	}),
}

var historyRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove"},
	Short:   "Remove measurements by id",
	Args:    cobra.MinimumNArgs(1),
	RunE: withSession(0, func(cmd *cobra.Command, args []string, s *cliSession) error {
		for _, id := range args {
			removed, err := s.store.Remove(id)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no measurement with id %q", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
		}
		return nil
	}),
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every measurement",
	Args:  cobra.NoArgs,
	RunE: withSession(0, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		n := s.store.Len()
		if err := s.store.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d measurements\n", n)
		return nil
	}),
}

var historyUnitCmd = &cobra.Command{
	Use:   "unit [meter|kilometer]",
	Short: "Show or change the preferred distance unit",
	Args:  cobra.MaximumNArgs(1),
	RunE: withSession(0, func(cmd *cobra.Command, args []string, s *cliSession) error {
		if len(args) == 1 {
			u, err := measure.ParseUnit(args[0])
			if err != nil {
				return err
			}
			if err := s.store.SetUnit(u); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.store.Unit())
		return nil
	}),
}

var historyPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send the history to the live feed collector",
	Args:  cobra.NoArgs,
	RunE: withSession(session.NeedFeed, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %d measurements\n", s.store.Len())
		return nil
	}),
}

var archiveLimit int

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Work with the measurement archive in the database",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived measurements, most recent first",
	Args:  cobra.NoArgs,
	RunE: withSession(session.NeedArchive, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		rows, err := s.Archive.List(archiveLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tVALUE\tTIME")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.RecordID, r.Kind, r.DisplayText, r.MeasuredAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	}),
}

var archiveSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy every history measurement into the archive",
	Args:  cobra.NoArgs,
	RunE: withSession(session.NeedArchive, func(cmd *cobra.Command, _ []string, s *cliSession) error {
		records := s.store.List()
		for _, r := range records {
			s.Archive.RecordAppended(r)
		}
		if err := s.Archive.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Archived %d measurements\n", len(records))
		return nil
	}),
}

func init() {
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 20, "maximum rows to show, 0 for all")

	historyCmd.AddCommand(historyListCmd, historyExportCmd, historyRemoveCmd, historyClearCmd, historyUnitCmd, historyPushCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveSyncCmd)
	rootCmd.AddCommand(historyCmd, archiveCmd)
}
