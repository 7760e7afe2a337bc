package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

type EscalationHandler struct {
	svc    *service.EscalationService
	logger *zap.Logger
}

func NewEscalationHandler(svc *service.EscalationService, logger *zap.Logger) *EscalationHandler {
	return &EscalationHandler{svc: svc, logger: logger}
}

// History handles GET /api/v1/work-orders/{id}/escalations
//
// @Summary  Escalation history of a work order, by ascending level
// @Tags     escalations
// @Produce  json
// @Param    id   path      string  true  "Work order ID"
// @Success  200  {object}  map[string]any
// @Router   /api/v1/work-orders/{id}/escalations [get]
func (h *EscalationHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if hist == nil {
		hist = []*domain.EscalationHistory{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": hist})
}

// ListRules handles GET /api/v1/escalation-rules
//
// @Summary  List escalation rules
// @Tags     escalations
// @Produce  json
// @Param    active  query     bool  false  "Only active rules"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/escalation-rules [get]
func (h *EscalationHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context(), queryBool(r, "active"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if rules == nil {
		rules = []*domain.EscalationRule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rules})
}

// GetRule handles GET /api/v1/escalation-rules/{id}
//
// @Summary  Get an escalation rule
// @Tags     escalations
// @Produce  json
// @Param    id   path      string  true  "Rule UUID"
// @Success  200  {object}  domain.EscalationRule
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/escalation-rules/{id} [get]
func (h *EscalationHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.svc.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// CreateRule handles POST /api/v1/escalation-rules
//
// @Summary  Create an escalation rule
// @Tags     escalations
// @Accept   json
// @Produce  json
// @Param    body  body      domain.CreateRuleRequest  true  "Rule"
// @Success  201   {object}  domain.EscalationRule
// @Failure  409   {object}  map[string]string  "An active rule already covers the scope"
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/escalation-rules [post]
func (h *EscalationHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.svc.CreateRule(r.Context(), req)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// UpdateRule handles PUT /api/v1/escalation-rules/{id}
//
// @Summary  Update an escalation rule
// @Tags     escalations
// @Accept   json
// @Produce  json
// @Param    id    path      string                    true  "Rule UUID"
// @Param    body  body      domain.UpdateRuleRequest  true  "Fields to change"
// @Success  200   {object}  domain.EscalationRule
// @Failure  404   {object}  map[string]string
// @Failure  409   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/escalation-rules/{id} [put]
func (h *EscalationHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rule, err := h.svc.UpdateRule(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/escalation-rules/{id}
//
// The rule is deactivated, not removed; escalation history keeps its reference.
//
// @Summary  Deactivate an escalation rule
// @Tags     escalations
// @Param    id   path  string  true  "Rule UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/escalation-rules/{id} [delete]
func (h *EscalationHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
