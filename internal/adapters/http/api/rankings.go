package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/courtside/internal/domain/affinity"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/sentiment"
)

// RankingsHandler serves a user's ordered list.
type RankingsHandler struct {
	rankings     Rankings
	maxBodyBytes int64
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(rankings Rankings, maxBodyBytes int64) *RankingsHandler {
	return &RankingsHandler{rankings: rankings, maxBodyBytes: maxBodyBytes}
}

type metaRequest struct {
	Sentiment *string `json:"sentiment"`
	Affinity  *string `json:"affinity"`
}

type rerankRequest struct {
	SideA   string   `json:"side_a"`
	SideB   string   `json:"side_b"`
	Favored []string `json:"favored"`
}

// HandleList handles GET /users/{userID}/rankings.
func (h *RankingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.rankings.List(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// HandleGet handles GET /users/{userID}/rankings/{itemID}.
func (h *RankingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.rankings.Get(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleRemove handles DELETE /users/{userID}/rankings/{itemID}.
func (h *RankingsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	e, err := h.rankings.Remove(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleUpdateMeta handles PATCH /users/{userID}/rankings/{itemID}.
func (h *RankingsHandler) HandleUpdateMeta(w http.ResponseWriter, r *http.Request) {
	var req metaRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	var (
		sent *model.Sentiment
		aff  *model.Affinity
	)
	if req.Sentiment != nil {
		s, err := sentiment.Classify(*req.Sentiment)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		sent = &s
	}
	if req.Affinity != nil {
		a, err := affinity.Parse(*req.Affinity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		aff = &a
	}
	e, err := h.rankings.UpdateMeta(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "itemID"), sent, aff)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleRerank handles POST /users/{userID}/rankings/{itemID}/rerank.
func (h *RankingsHandler) HandleRerank(w http.ResponseWriter, r *http.Request) {
	var req rerankRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, true); err != nil {
		writeServiceError(w, err)
		return
	}
	item := matchupRequest{ItemID: chi.URLParam(r, "itemID"), SideA: req.SideA, SideB: req.SideB}.matchup()
	v, err := h.rankings.Rerank(r.Context(), chi.URLParam(r, "userID"), item, req.Favored)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}
