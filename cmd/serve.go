package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/db"
	"github.com/yumyai/strainmodel/pkg/handler"
	"github.com/yumyai/strainmodel/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run ledger over HTTP",
	Long: `Serve the run ledger over HTTP

Routes:
  GET /api/v1/health
  GET /api/v1/runs?limit=N
  GET /api/v1/runs/{run_id}
  GET /api/v1/runs/{run_id}/orthologs
  GET /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "0.0.0.0:8080", "address to listen on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledger, err := db.Open(ctx, cfg.LedgerDSN)
	if err != nil {
		return err
	}
	defer ledger.Close()

	m := metrics.New()
	m.RegisterRuntime()
	srv := &http.Server{
		Addr: cfg.Listen,
		Handler: handler.NewServer(&handler.DBContext{
			Runs:    ledger,
			Metrics: m.Handler(),
		}, logger.L()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.Listen), zap.String("version", Version))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error starting server", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
