package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once the configuration
// has been loaded.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	config     *Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "textgen",
		Short:         "Train word-level Markov models and generate text from them",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "./config.json", "path to the JSON or YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (overrides the config file)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newGenerateCmd(a),
		newParagraphCmd(a),
		newTrainCmd(a),
		newModelsCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newPruneCmd(a),
		newStatsCmd(a),
		newDotCmd(a),
		newServeCmd(a),
	)
	return root
}

// init loads .env, the config file and the environment, then applies flag
// overrides and builds the logger.
func (a *app) init(logOut io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.dbPath != "" {
		cfg.Server.DatabasePath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.Server.LogLevel = a.logLevel
	}

	a.config = cfg
	a.logger = newLogger(logOut, cfg.Server.LogLevel, cfg.Server.LogFormat)
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
