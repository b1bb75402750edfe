package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// EngineHandler serves the stateless helpers: sentiment options, affinity
// detection and score derivation.
type EngineHandler struct {
	engine       Engine
	maxBodyBytes int64
}

// NewEngineHandler creates a new engine handler.
func NewEngineHandler(engine Engine, maxBodyBytes int64) *EngineHandler {
	return &EngineHandler{engine: engine, maxBodyBytes: maxBodyBytes}
}

// HandleSentiments handles GET /sentiments.
func (h *EngineHandler) HandleSentiments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Sentiments())
}

type affinityResponse struct {
	Affinity string `json:"affinity"`
}

// HandleDetectAffinity handles POST /affinity/detect.
func (h *EngineHandler) HandleDetectAffinity(w http.ResponseWriter, r *http.Request) {
	var req matchupRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req, false); err != nil {
		writeServiceError(w, err)
		return
	}
	a, err := h.engine.DetectAffinity(req.matchup(), req.Favored)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, affinityResponse{Affinity: string(a)})
}

// HandleScore handles GET /score?position=&total=.
func (h *EngineHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	position, err := queryInt(r, "position")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	total, err := queryInt(r, "total")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	d, err := h.engine.Score(position, total)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrBadRequest, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}
