package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/minesight/tilecore/internal/config"
	"github.com/minesight/tilecore/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const appName = "tilecore"

var version = "dev"

var (
	configDir string
	logToFile bool

	slogManager = logging.NewSlogManager()
	Logger      = slog.Default()
	zl          = zerolog.Nop()
	logFile     *os.File
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Tools for the tileset viewer engine",
	Long: `tilecore works on the state a viewer session leaves behind: the
measurement history, its database archive, and the placement and section
calculations the viewer performs.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "also write logs to a session file under logsDir")
}

func setup(cmd *cobra.Command, _ []string) error {
	cfgErr := config.Load(configDir)
	level := config.GetString("logLevel")

	var out io.Writer = cmd.ErrOrStderr()
	if logToFile {
		dir := config.GetString("logsDir")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
		f, err := os.Create(logging.LogFilePath(dir, appName, time.Now()))
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(cmd.ErrOrStderr(), f)
	}

	opts := logging.Options{File: out, Level: level}
	if config.GetBool("graylog.enabled") {
		opts.GraylogAddress = config.GetString("graylog.address")
	}
	if err := slogManager.Setup(opts); err != nil {
		// file logging still works
		slogManager.Logger().Warn("Graylog unavailable", "error", err)
	}
	Logger = slogManager.Logger()
	zl = logging.NewZerolog(out, level).With().Str("app", appName).Logger()

	if cfgErr != nil {
		Logger.Warn("Using default configuration", "dir", filepath.Clean(configDir), "error", cfgErr)
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	err := slogManager.Close()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
