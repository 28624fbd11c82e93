// Handler for miscellaneous endpoints such as health check

package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/strainmodel/logger"
	"github.com/yumyai/strainmodel/pkg/middle"
)

type HealthResponse struct {
	Health    string    `json:"health"`
	Ledger    string    `json:"ledger"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck reports 503 when the ledger cannot be reached.
func (dbctx *DBContext) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Health:    "ok",
		Ledger:    "ok",
		Timestamp: time.Now(),
	}
	status := http.StatusOK
	if err := dbctx.Runs.Ping(r.Context()); err != nil {
		middle.LoggerFrom(r.Context(), logger.L()).Warn("Ledger unreachable", zap.Error(err))
		response.Health = "degraded"
		response.Ledger = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, response)
}
