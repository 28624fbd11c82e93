package handler

// DI for all handlers.

import (
	"context"
	"net/http"

	"github.com/yumyai/strainmodel/pkg/db"
)

// RunStore is the read side of the run ledger. *db.Ledger implements it.
type RunStore interface {
	Ping(ctx context.Context) error
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	GetRun(ctx context.Context, runID string) (db.Run, error)
	GetEvents(ctx context.Context, runID string) ([]db.Event, error)
	GetOrthologs(ctx context.Context, runID string) ([]db.Ortholog, error)
}

type DBContext struct {
	Runs RunStore
	// Metrics serves /metrics when set.
	Metrics http.Handler
}
