package handler

import (
	"encoding/json"
	"net/http"

	"github.com/scorepredictor/live-data/internal/api/respond"
	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/score"
)

// scorePayload mirrors the change-capture wire shape. oldRecord is optional;
// when absent the pipeline falls back to the stored record, and failing
// that the classifier reconstructs prior state from the dedup ledger.
type scorePayload struct {
	NewRecord scoreRecordBody  `json:"newRecord"`
	OldRecord *scoreRecordBody `json:"oldRecord"`
}

type scoreRecordBody struct {
	ExternalID int    `json:"externalId"`
	HomeScore  int    `json:"homeScore"`
	AwayScore  int    `json:"awayScore"`
	Status     string `json:"status"`
	Minute     int    `json:"minute"`
}

// PostScoreHook ingests one score change from an external writer.
// @Summary Change-capture hook for score updates
// @Tags hooks
// @Accept json
// @Produce json
// @Param payload body scorePayload true "Score change"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/hooks/score [post]
func (h *Handler) PostScoreHook(w http.ResponseWriter, r *http.Request) {
	var payload scorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "invalid JSON body")
		return
	}

	ctx := r.Context()
	fixture, err := h.scores.FixtureByExternalID(ctx, payload.NewRecord.ExternalID)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "LOOKUP_FAILED", "fixture lookup failed")
		return
	}
	if fixture == nil {
		respond.WriteError(w, http.StatusNotFound, "UNKNOWN_FIXTURE", "no fixture for externalId")
		return
	}

	latest := score.Record{
		ExternalID:   fixture.ExternalID,
		Gameweek:     fixture.Gameweek,
		FixtureIndex: fixture.FixtureIndex,
		HomeScore:    payload.NewRecord.HomeScore,
		AwayScore:    payload.NewRecord.AwayScore,
		Status:       payload.NewRecord.Status,
		Minute:       payload.NewRecord.Minute,
	}

	stored, err := h.scores.Upsert(ctx, latest)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "UPSERT_FAILED", "score upsert failed")
		return
	}

	var old *score.Record
	switch {
	case payload.OldRecord != nil:
		old = &score.Record{
			ExternalID: fixture.ExternalID,
			Gameweek:   fixture.Gameweek,
			HomeScore:  payload.OldRecord.HomeScore,
			AwayScore:  payload.OldRecord.AwayScore,
			Status:     payload.OldRecord.Status,
			Minute:     payload.OldRecord.Minute,
		}
	case stored != nil && !stored.Equal(latest):
		old = stored
	}

	h.pipeline.Handle(ctx, *fixture, old, latest)
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

// chatPayload is the inbound shape for chat notifications.
type chatPayload struct {
	Gameweek  int    `json:"gameweek"`
	MessageID string `json:"messageId"`
	AuthorID  string `json:"authorId"`
	Preview   string `json:"preview"`
}

// PostChatHook fans a chat message out to everyone except its author.
// @Summary Chat message notification hook
// @Tags hooks
// @Accept json
// @Produce json
// @Param payload body chatPayload true "Chat message"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/hooks/chat [post]
func (h *Handler) PostChatHook(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "invalid JSON body")
		return
	}
	if payload.MessageID == "" || payload.AuthorID == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_PAYLOAD", "messageId and authorId are required")
		return
	}

	ev := event.Event{
		Kind:     event.KindChatMessage,
		MarkerID: event.ChatMarker(payload.Gameweek, payload.MessageID),
		Gameweek: payload.Gameweek,
		AuthorID: payload.AuthorID,
		Preview:  payload.Preview,
	}

	if err := h.dispatcher.Dispatch(r.Context(), ev); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DISPATCH_FAILED", "chat dispatch failed")
		return
	}
	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}
