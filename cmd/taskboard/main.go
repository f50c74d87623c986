package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/logging"
	"taskboard/internal/services/task"
	"taskboard/internal/storage/sqlite"
)

var Version = "dev"

var (
	configPath string
	dbPath     string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Personal kanban board with recurring tasks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to sqlite database file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(materializeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every subcommand needs.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *sqlite.Store
	tasks  task.Service
}

// openApp loads the configuration, applies flags set on cmd and opens the store.
func openApp(cmd *cobra.Command, override func(*config.Config)) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if override != nil {
		override(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		tasks:  task.NewService(store, logger, task.Options{DoneColumnID: cfg.DoneColumn}),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
