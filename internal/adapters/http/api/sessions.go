package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/courtside/internal/domain/affinity"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/sentiment"
)

// idempotencyHeader lets a client retry a confirm safely.
const idempotencyHeader = "Idempotency-Key"

// SessionHandler drives the ranking wizard.
type SessionHandler struct {
	rankings     Rankings
	maxBodyBytes int64
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(rankings Rankings, maxBodyBytes int64) *SessionHandler {
	return &SessionHandler{rankings: rankings, maxBodyBytes: maxBodyBytes}
}

type affinityRequest struct {
	// Affinity overrides the detected value; omitted keeps it.
	Affinity *string `json:"affinity"`
}

type sentimentRequest struct {
	Sentiment string `json:"sentiment"`
}

type comparisonRequest struct {
	Result string `json:"result"`
}

// HandleBegin handles POST /users/{userID}/sessions.
func (h *SessionHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	var req matchupRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	v, err := h.rankings.Begin(r.Context(), chi.URLParam(r, "userID"), req.matchup(), req.Favored)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleGet handles GET /users/{userID}/sessions/{sessionID}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.rankings.Session(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleCancel handles DELETE /users/{userID}/sessions/{sessionID}.
func (h *SessionHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.rankings.Cancel(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirmAffinity handles POST /users/{userID}/sessions/{sessionID}/affinity.
func (h *SessionHandler) HandleConfirmAffinity(w http.ResponseWriter, r *http.Request) {
	var req affinityRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, true); err != nil {
		writeServiceError(w, err)
		return
	}
	var override *model.Affinity
	if req.Affinity != nil {
		a, err := affinity.Parse(*req.Affinity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		override = &a
	}
	v, err := h.rankings.ConfirmAffinity(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), override)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleSentiment handles POST /users/{userID}/sessions/{sessionID}/sentiment.
func (h *SessionHandler) HandleSentiment(w http.ResponseWriter, r *http.Request) {
	var req sentimentRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	sent, err := sentiment.Classify(req.Sentiment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	v, err := h.rankings.ChooseSentiment(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), sent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleCompare handles POST /users/{userID}/sessions/{sessionID}/comparisons.
func (h *SessionHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req comparisonRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	result := model.ComparisonResult(strings.ToLower(strings.TrimSpace(req.Result)))
	v, err := h.rankings.Compare(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), result)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleConfirm handles POST /users/{userID}/sessions/{sessionID}/confirm.
func (h *SessionHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	e, err := h.rankings.Confirm(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
