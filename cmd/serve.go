// Package cmd wires the dashboard's components together and runs the
// long-lived server process.
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beavernet/beavernet/internal/api"
	"github.com/beavernet/beavernet/internal/audit"
	"github.com/beavernet/beavernet/internal/auth"
	"github.com/beavernet/beavernet/internal/config"
	"github.com/beavernet/beavernet/internal/events"
	"github.com/beavernet/beavernet/internal/logging"
	"github.com/beavernet/beavernet/internal/packetfilter"
	"github.com/beavernet/beavernet/internal/store"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads the config file if one was given, otherwise defaults.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.LoadFile(configFile)
}

// RunServe starts the dashboard server and blocks until shutdown.
func RunServe(configFile, listenOverride string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if listenOverride != "" {
		cfg.Server.Listen = listenOverride
	}

	level := logging.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	logger := logging.New(logging.Config{Level: level, Output: os.Stderr, JSON: cfg.Log.JSON})
	logging.SetDefault(logger)

	users, err := auth.NewStore(cfg.Auth.UsersFile, nil)
	if err != nil {
		return err
	}

	sessionTTL, err := cfg.SessionTTL()
	if err != nil {
		return err
	}
	rememberTTL, err := cfg.RememberTTL()
	if err != nil {
		return err
	}
	users.SetSessionTTLs(sessionTTL, rememberTTL)

	// Bootstrap credentials apply only to an empty store
	if cfg.Auth.AdminUser != "" && !users.HasUsers() {
		if _, err := users.Register(cfg.Auth.AdminUser, cfg.Auth.AdminPassword, ""); err != nil {
			return err
		}
		logger.Info("bootstrap admin created", "username", cfg.Auth.AdminUser)
	}

	auditLog, err := audit.NewStore(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	// Enforce the retention window once a day
	stopPruner := auditLog.StartPruner(24 * time.Hour)
	defer stopPruner()

	syncTimeout, err := cfg.SyncTimeout()
	if err != nil {
		return err
	}
	adapter := packetfilter.New(packetfilter.Options{
		Logger:  logger,
		Binary:  cfg.Sync.Binary,
		Timeout: syncTimeout,
	})

	srv, err := api.NewServer(api.ServerOptions{
		Config:   cfg,
		Repo:     store.NewRepository(),
		Users:    users,
		Sync:     adapter,
		AuditLog: auditLog,
		Hub:      events.NewHub(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := srv.HTTPServer(cfg.Server.Listen, nil)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	// Let in-flight packet-filter invocations finish before exit
	adapter.Wait()

	return nil
}
