package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maintenancehub/escalation-engine/internal/domain"
	"github.com/maintenancehub/escalation-engine/internal/service"
)

type SubscriptionHandler struct {
	svc    *service.SubscriptionService
	logger *zap.Logger
}

func NewSubscriptionHandler(svc *service.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

// Register handles POST /api/v1/users/{userID}/push-subscriptions
//
// Registering an endpoint that already exists reactivates it for userID.
//
// @Summary  Register a Web Push subscription
// @Tags     push-subscriptions
// @Accept   json
// @Produce  json
// @Param    userID  path      string                              true  "User ID"
// @Param    body    body      domain.RegisterSubscriptionRequest  true  "Browser PushSubscription"
// @Success  201     {object}  domain.PushSubscription
// @Failure  422     {object}  map[string]string
// @Router   /api/v1/users/{userID}/push-subscriptions [post]
func (h *SubscriptionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	sub, err := h.svc.Register(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// List handles GET /api/v1/users/{userID}/push-subscriptions
//
// @Summary  List a user's push subscriptions
// @Tags     push-subscriptions
// @Produce  json
// @Param    userID  path      string  true   "User ID"
// @Param    active  query     bool    false  "Only active subscriptions"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/users/{userID}/push-subscriptions [get]
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.List(r.Context(), chi.URLParam(r, "userID"), queryBool(r, "active"))
	if err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	if subs == nil {
		subs = []*domain.PushSubscription{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": subs})
}

// Deactivate handles POST /api/v1/push-subscriptions/{id}/deactivate
//
// The subscription stays registered but receives no pushes until the browser
// registers it again.
//
// @Summary  Deactivate a push subscription
// @Tags     push-subscriptions
// @Param    id   path  string  true  "Subscription UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/push-subscriptions/{id}/deactivate [post]
func (h *SubscriptionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/push-subscriptions/{id}
//
// @Summary  Remove a push subscription
// @Tags     push-subscriptions
// @Param    id   path  string  true  "Subscription UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/push-subscriptions/{id} [delete]
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
