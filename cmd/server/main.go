// Command server runs the CRM HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"skycrm/internal/app"
	"skycrm/internal/config"
	"skycrm/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:          "skycrm",
		Short:        "Multi-tenant CRM record management API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.LoadFromEnv()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			for _, warning := range cfg.Warnings {
				logger.Warn(warning)
			}

			writeDB, readDB, err := db.OpenSQLitePair(cfg.DBPath, 0)
			if err != nil {
				return err
			}
			defer readDB.Close()  //nolint:errcheck
			defer writeDB.Close() //nolint:errcheck

			if err := db.RunMigrations(writeDB); err != nil {
				return err
			}

			a := app.New(app.Deps{Cfg: cfg, WriteDB: writeDB, ReadDB: readDB, Logger: logger})
			if err := a.Janitor.Start(); err != nil {
				return fmt.Errorf("start janitor: %w", err)
			}
			defer a.Janitor.Stop()

			server := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           a.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http api listening", "addr", cfg.ListenAddr, "env", cfg.Env)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			writeDB, err := db.OpenSQLite(cfg.DBPath, "write", 0)
			if err != nil {
				return err
			}
			defer writeDB.Close() //nolint:errcheck

			if err := db.RunMigrations(writeDB); err != nil {
				return err
			}
			logger.Info("migrations applied", "db", cfg.DBPath)
			return nil
		},
	}
}
