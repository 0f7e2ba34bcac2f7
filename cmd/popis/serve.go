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

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/erazemk/popis/internal/api"
	"github.com/erazemk/popis/internal/counting"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/store"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API (initialises the database on first run)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			closeLog, err := setupLogger(cfg.LogPath, opts.Verbose)
			if err != nil {
				return err
			}
			defer closeLog()

			// Check if DB exists, auto-init if not.
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				database, password, err := initDatabase(cfg.DBPath, cfg.AdminUsername)
				if err != nil {
					return fmt.Errorf("initializing database: %w", err)
				}
				database.Close()

				printInitResult(cmd, cfg.DBPath, cfg.AdminUsername, password)
				fmt.Fprintln(cmd.OutOrStdout())
			}

			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.EnsureSchema(database); err != nil {
				return fmt.Errorf("ensuring database schema: %w", err)
			}
			slog.Info("database ready", "path", cfg.DBPath)

			jwtSecret := cfg.JWTSecret
			if jwtSecret == "" {
				// Generated on first run and kept in the database.
				jwtSecret, err = store.GetJWTSecret(cmd.Context(), database)
				if err != nil {
					return err
				}
			}

			svc := counting.New(database,
				&store.Catalog{DB: database},
				&store.RoleAuthorizer{DB: database, MinimumRole: cfg.ApproverRole},
				store.StockLedger{},
				counting.WithRecomputeAttempts(cfg.RecomputeAttempts),
			)

			var loginLimiter *api.RateLimiter
			if cfg.LoginRate > 0 {
				loginLimiter = api.NewRateLimiter(rate.Limit(cfg.LoginRate), cfg.LoginBurst)
				defer loginLimiter.Stop()
			}

			router := api.NewRouter(database, svc, api.Options{
				JWTSecret:    jwtSecret,
				TokenExpiry:  cfg.TokenExpiry,
				LoginLimiter: loginLimiter,
			})

			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.LoggingMiddleware(router),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			return runServer(cmd.Context(), server, cfg.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")

	return cmd
}

// runServer serves until SIGINT/SIGTERM or ctx is done, then shuts down
// gracefully.
func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}
