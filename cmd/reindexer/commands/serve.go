package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfolio/reindexer/internal/api"
	"github.com/quantfolio/reindexer/internal/results"
	"github.com/quantfolio/reindexer/pkg/database"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the results API server",
	Long: `Serves persisted runs and step records over HTTP, with a websocket
progress stream for live runs.

Endpoints:
  GET /health
  GET /api/runs
  GET /api/runs/{id}
  GET /api/runs/{id}/steps
  GET /ws/progress`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := initProcess()
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := results.NewRepository(db)
	if err := repo.EnsureSchema(cmd.Context()); err != nil {
		return err
	}

	hub := api.NewProgressHub(log)
	router := api.NewRouter(api.NewRunsHandler(repo, log), hub, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
