package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

type PreferenceHandler struct {
	svc    *service.PreferenceService
	logger *zap.Logger
}

func NewPreferenceHandler(svc *service.PreferenceService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/users/{userID}/preferences
//
// @Summary  List stored notification preferences
// @Tags     preferences
// @Produce  json
// @Param    userID  path      string  true  "User ID"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/users/{userID}/preferences [get]
func (h *PreferenceHandler) List(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.svc.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if prefs == nil {
		prefs = []*domain.NotificationPreference{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": prefs})
}

// Get handles GET /api/v1/users/{userID}/preferences/{type}
//
// A type with no stored row returns the effective default: everything enabled.
//
// @Summary  Get the effective preference for one notification type
// @Tags     preferences
// @Produce  json
// @Param    userID  path      string  true  "User ID"
// @Param    type    path      string  true  "Notification type"
// @Success  200     {object}  domain.NotificationPreference
// @Failure  422     {object}  map[string]string
// @Router   /api/v1/users/{userID}/preferences/{type} [get]
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "userID"), domain.NotificationType(chi.URLParam(r, "type")))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Put handles PUT /api/v1/users/{userID}/preferences/{type}
//
// Omitted fields keep their stored value. Empty quiet-hour strings clear the window.
//
// @Summary  Create or update a notification preference
// @Tags     preferences
// @Accept   json
// @Produce  json
// @Param    userID  path      string                          true  "User ID"
// @Param    type    path      string                          true  "Notification type"
// @Param    body    body      domain.UpsertPreferenceRequest  true  "Fields to change"
// @Success  200     {object}  domain.NotificationPreference
// @Failure  422     {object}  map[string]string
// @Router   /api/v1/users/{userID}/preferences/{type} [put]
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req domain.UpsertPreferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.Upsert(r.Context(), chi.URLParam(r, "userID"), domain.NotificationType(chi.URLParam(r, "type")), req)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/v1/users/{userID}/preferences/{type}
//
// @Summary  Reset a notification preference to the default
// @Tags     preferences
// @Param    userID  path  string  true  "User ID"
// @Param    type    path  string  true  "Notification type"
// @Success  204
// @Router   /api/v1/users/{userID}/preferences/{type} [delete]
func (h *PreferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "userID"), domain.NotificationType(chi.URLParam(r, "type"))); err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
