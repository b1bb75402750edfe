// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/scoring"
	"github.com/okian/courtside/internal/domain/sentiment"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/pkg/logger"
)

// defaultMaxBodyBytes bounds every JSON request body.
const defaultMaxBodyBytes = 1 << 20

// Engine exposes the stateless ranking helpers.
type Engine interface {
	Sentiments() []sentiment.Option
	DetectAffinity(item model.Matchup, favored []string) (model.Affinity, error)
	Score(position, total int) (scoring.Display, error)
}

// Rankings is the per-user ranking flow and list surface.
type Rankings interface {
	Begin(ctx context.Context, userID string, item model.Matchup, favored []string) (types.Session, error)
	Session(ctx context.Context, userID, sessionID string) (types.Session, error)
	ConfirmAffinity(ctx context.Context, userID, sessionID string, override *model.Affinity) (types.Session, error)
	ChooseSentiment(ctx context.Context, userID, sessionID string, sent model.Sentiment) (types.Session, error)
	Compare(ctx context.Context, userID, sessionID string, r model.ComparisonResult) (types.Session, error)
	Confirm(ctx context.Context, userID, sessionID, idempotencyKey string) (types.Entry, error)
	Cancel(ctx context.Context, userID, sessionID string) error

	List(ctx context.Context, userID string) (types.Ranking, error)
	Get(ctx context.Context, userID, itemID string) (types.Entry, error)
	Remove(ctx context.Context, userID, itemID string) (types.Entry, error)
	Rerank(ctx context.Context, userID string, item model.Matchup, favored []string) (types.Session, error)
	UpdateMeta(ctx context.Context, userID, itemID string, sent *model.Sentiment, aff *model.Affinity) (types.Entry, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Engine
	Rankings
	HealthChecker
	StatsProvider
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithJWTSecret enables bearer auth on /users routes. Empty disables it.
func WithJWTSecret(secret string) ServerOption {
	return func(s *Server) {
		s.auth = NewAuthenticator(secret)
	}
}

// WithLogger sets a custom logger for request logging.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	engineHandler   *EngineHandler
	sessionHandler  *SessionHandler
	rankingsHandler *RankingsHandler

	auth         *Authenticator
	logger       logger.Logger
	maxBodyBytes int64
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		auth:         NewAuthenticator(""),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.engineHandler = NewEngineHandler(deps, s.maxBodyBytes)
	s.sessionHandler = NewSessionHandler(deps, s.maxBodyBytes)
	s.rankingsHandler = NewRankingsHandler(deps, s.maxBodyBytes)
	return s
}

// Router returns a chi router with the common middleware stack and every
// API route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverMiddleware(s.logger))
	r.Use(MetricsMiddleware)
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/sentiments", s.engineHandler.HandleSentiments)
	r.Post("/affinity/detect", s.engineHandler.HandleDetectAffinity)
	r.Get("/score", s.engineHandler.HandleScore)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.sessionHandler.HandleBegin)
			r.Get("/{sessionID}", s.sessionHandler.HandleGet)
			r.Delete("/{sessionID}", s.sessionHandler.HandleCancel)
			r.Post("/{sessionID}/affinity", s.sessionHandler.HandleConfirmAffinity)
			r.Post("/{sessionID}/sentiment", s.sessionHandler.HandleSentiment)
			r.Post("/{sessionID}/comparisons", s.sessionHandler.HandleCompare)
			r.Post("/{sessionID}/confirm", s.sessionHandler.HandleConfirm)
		})

		r.Route("/rankings", func(r chi.Router) {
			r.Get("/", s.rankingsHandler.HandleList)
			r.Get("/{itemID}", s.rankingsHandler.HandleGet)
			r.Delete("/{itemID}", s.rankingsHandler.HandleRemove)
			r.Patch("/{itemID}", s.rankingsHandler.HandleUpdateMeta)
			r.Post("/{itemID}/rerank", s.rankingsHandler.HandleRerank)
		})
	})
}

// matchupRequest carries the two sides of an item and the viewer's favorites.
type matchupRequest struct {
	ItemID  string   `json:"item_id"`
	SideA   string   `json:"side_a"`
	SideB   string   `json:"side_b"`
	Favored []string `json:"favored"`
}

func (m matchupRequest) matchup() model.Matchup {
	return model.Matchup{
		ItemID: strings.TrimSpace(m.ItemID),
		SideA:  strings.TrimSpace(m.SideA),
		SideB:  strings.TrimSpace(m.SideB),
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON object into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return nil
}
