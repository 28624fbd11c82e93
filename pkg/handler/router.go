package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/pkg/middle"
)

func NewRouter(dbctx *DBContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// API routes
	mux.HandleFunc("GET /api/v1/health", dbctx.HealthCheck)
	mux.HandleFunc("GET /api/v1/runs", dbctx.ListRunsHandler)
	mux.HandleFunc("GET /api/v1/runs/{run_id}", dbctx.RunHandler)
	mux.HandleFunc("GET /api/v1/runs/{run_id}/orthologs", dbctx.OrthologsHandler)

	if dbctx.Metrics != nil {
		mux.Handle("GET /metrics", dbctx.Metrics)
	}
	return mux
}

// NewServer wraps the router with request ids and request logging.
func NewServer(dbctx *DBContext, log *zap.Logger) http.Handler {
	return middle.Chain(NewRouter(dbctx),
		middle.RequestIDMiddleware(log),
		middle.LoggingMiddleware(log),
	)
}
