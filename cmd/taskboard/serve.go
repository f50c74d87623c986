package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/config"
	"taskboard/internal/scheduler"
	"taskboard/internal/server"
)

const materializeTimeout = time.Minute

func serveCmd() *cobra.Command {
	var (
		addr      string
		staticDir string
		every     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and web UI",
		Long: `Start the task board server.

Recurring tasks are caught up once at startup and then every
--materialize-every (0 disables the background job).

Examples:
  taskboard serve --addr :3001 --db data/tasks.db
  taskboard serve --config taskboard.yaml --materialize-every 15m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, func(cfg *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("addr") {
					cfg.Addr = addr
				}
				if flags.Changed("static") {
					cfg.StaticDir = staticDir
				}
				if flags.Changed("materialize-every") {
					cfg.MaterializeEvery = every
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()
			return runServe(a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory with built frontend")
	cmd.Flags().DurationVar(&every, "materialize-every", 0, "Interval between recurring task catch-ups")
	return cmd
}

func runServe(a *app) error {
	logger := a.logger
	logger.Info("taskboard starting", slog.String("version", Version), slog.String("db", a.cfg.DBPath))

	// Catch up on whatever fell due while the server was down.
	ctx, cancel := context.WithTimeout(context.Background(), materializeTimeout)
	created, err := a.tasks.MaterializeAll(ctx, time.Now())
	cancel()
	if err != nil {
		logger.Error("startup materialization failed", slog.String("error", err.Error()))
	} else {
		logger.Info("startup materialization", slog.Int("created", len(created)))
	}

	sched := scheduler.New(time.Local, logger)
	if a.cfg.MaterializeEvery > 0 {
		if _, err := sched.ScheduleMaterialization(a.cfg.MaterializeEvery, materializeTimeout, a.tasks, nil); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(a.store, a.tasks, logger, a.cfg.StaticDir)
	httpServer := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
