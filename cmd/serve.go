package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/satheeshds/trackey/db"
	_ "github.com/satheeshds/trackey/docs"
	"github.com/satheeshds/trackey/events"
	"github.com/satheeshds/trackey/handlers"
	"github.com/satheeshds/trackey/store"
	"github.com/satheeshds/trackey/store/memory"
	"github.com/satheeshds/trackey/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Example: `  # Serve against PostgreSQL, applying migrations first
  trackey serve

  # Serve from memory, nothing is persisted
  trackey serve --memory`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("memory", false, "Keep records in memory instead of PostgreSQL")
	serveCmd.Flags().Bool("migrate", true, "Apply pending migrations before serving")
}

func openStore(ctx context.Context, inMemory, migrate bool) (store.Store, error) {
	if inMemory {
		slog.Warn("using in-memory store, records are lost on exit")
		return memory.New(), nil
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return postgres.New(pool), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	inMemory, _ := cmd.Flags().GetBool("memory")
	migrate, _ := cmd.Flags().GetBool("migrate")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, inMemory, migrate)
	if err != nil {
		return err
	}
	defer st.Close()

	log := slog.Default()
	hub := events.NewHub(64, log)
	h := handlers.New(st, hub, log, cfg.SoldLookupTimeout)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: h.Router(handlers.RouterConfig{
			AuthUser:    cfg.AuthUser,
			AuthPass:    cfg.AuthPass,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
