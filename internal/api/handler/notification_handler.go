package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

// NotificationHandler serves the per-user in-app inbox.
type NotificationHandler struct {
	svc    *service.InboxService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.InboxService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/users/{userID}/notifications
//
// @Summary  List a user's notifications, newest first
// @Tags     notifications
// @Produce  json
// @Param    userID  path      string  true   "User ID"
// @Param    unread  query     bool    false  "Only unread notifications"
// @Param    page    query     int     false  "Page number (default 1)"
// @Param    limit   query     int     false  "Items per page (default 20, max 100)"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/users/{userID}/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	f := domain.InboxFilter{
		UnreadOnly: queryBool(r, "unread"),
		Page:       queryInt(r, "page", 1),
		Limit:      queryInt(r, "limit", 0),
	}

	items, total, err := h.svc.List(r.Context(), chi.URLParam(r, "userID"), f)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []*domain.Notification{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"total": total,
		"page":  f.Page,
	})
}

// Get handles GET /api/v1/notifications/{id}
//
// @Summary  Get a notification by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.Notification
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// MarkRead handles POST /api/v1/notifications/{id}/read
//
// @Summary  Mark a notification as read
// @Tags     notifications
// @Param    id   path  string  true  "Notification UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/users/{userID}/notifications/read-all
//
// @Summary  Mark every unread notification of a user as read
// @Tags     notifications
// @Produce  json
// @Param    userID  path      string  true  "User ID"
// @Success  200     {object}  map[string]int64
// @Router   /api/v1/users/{userID}/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
