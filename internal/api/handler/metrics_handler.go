package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/service"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	jobs   *service.JobService
	logger *zap.Logger
}

func NewMetricsHandler(jobs *service.JobService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{jobs: jobs, logger: logger}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time job queue snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	pending, err := h.jobs.CountPending(r.Context())
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{"pending": pending},
	})
}
