package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

// JobHandler is the operator surface of the job queue.
type JobHandler struct {
	svc    *service.JobService
	logger *zap.Logger
}

func NewJobHandler(svc *service.JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/jobs
//
// @Summary  Enqueue a job
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    body  body      domain.EnqueueRequest  true  "Job"
// @Success  201   {object}  domain.Job
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/jobs [post]
func (h *JobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

// Get handles GET /api/v1/jobs/{id}
//
// @Summary  Get a job by ID
// @Tags     jobs
// @Produce  json
// @Param    id   path      string  true  "Job UUID"
// @Success  200  {object}  domain.Job
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/jobs/{id} [get]
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// List handles GET /api/v1/jobs
//
// @Summary  List jobs, newest first
// @Tags     jobs
// @Produce  json
// @Param    status  query     string  false  "pending, processing, completed or failed"
// @Param    type    query     string  false  "Job type"
// @Param    limit   query     int     false  "Max items (default 50, max 200)"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/jobs [get]
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.JobFilter{Limit: queryInt(r, "limit", 0)}
	if s := q.Get("status"); s != "" {
		st := domain.JobStatus(s)
		f.Status = &st
	}
	if t := q.Get("type"); t != "" {
		jt := domain.JobType(t)
		f.Type = &jt
	}

	jobs, err := h.svc.List(r.Context(), f)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": jobs})
}

// Reset handles POST /api/v1/jobs/{id}/reset
//
// @Summary  Return a failed job to pending with attempts cleared
// @Tags     jobs
// @Produce  json
// @Param    id   path      string  true  "Job UUID"
// @Success  200  {object}  domain.Job
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/jobs/{id}/reset [post]
func (h *JobHandler) Reset(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
