package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scorepredictor/live-data/internal/api/respond"
	"github.com/scorepredictor/live-data/internal/subscription"
)

type registerPayload struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

// RegisterSubscription mints an endpoint id, announces it to the delivery
// transport, and stores the subscription as active.
// @Summary Register a push endpoint
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param payload body registerPayload true "Registration"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/subscriptions [post]
func (h *Handler) RegisterSubscription(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "invalid JSON body")
		return
	}
	if payload.UserID == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "userId is required")
		return
	}
	if payload.Platform == "" {
		payload.Platform = "web"
	}

	endpointID := uuid.NewString()
	status, err := h.transport.Register(r.Context(), endpointID)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "TRANSPORT_ERROR",
			"transport registration failed", err.Error())
		return
	}

	sub := subscription.Subscription{
		EndpointID:           endpointID,
		UserID:               payload.UserID,
		Platform:             payload.Platform,
		IsSubscribedRemotely: status.Deliverable != nil && *status.Deliverable,
	}
	if err := h.subs.Insert(r.Context(), sub); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_FAILED", "could not store subscription")
		return
	}

	respond.WriteJSONObject(w, http.StatusCreated, map[string]interface{}{
		"endpointId": endpointID,
		"platform":   payload.Platform,
	})
}

// UnregisterSubscription deactivates an endpoint locally.
// @Summary Deactivate a push endpoint
// @Tags subscriptions
// @Produce json
// @Param endpointID path string true "Endpoint id"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/subscriptions/{endpointID} [delete]
func (h *Handler) UnregisterSubscription(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if endpointID == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "endpointID is required")
		return
	}
	if err := h.subs.Deactivate(r.Context(), endpointID); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_FAILED", "could not deactivate subscription")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"deactivated": endpointID})
}
