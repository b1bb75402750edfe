// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	workerpool "github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/session"
	"github.com/okian/courtside/internal/domain/affinity"
	"github.com/okian/courtside/internal/domain/comparison"
	"github.com/okian/courtside/internal/domain/dedupe"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/internal/domain/scoring"
	"github.com/okian/courtside/internal/domain/sentiment"
	"github.com/okian/courtside/internal/domain/types"
	"github.com/okian/courtside/internal/domain/wizard"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

const tracerName = "github.com/okian/courtside/internal/app"

// Session outcomes reported to metrics.
const (
	outcomeConfirmed = "confirmed"
	outcomeCancelled = "cancelled"
	outcomeStale     = "stale"
)

// Service implements the ranking flow on top of the Rank Store.
//
// Every call that reads and then writes a user's state runs on that user's
// write lane, so a user's sessions and list mutations never interleave.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	sessions session.Store
	lanes    *workerpool.Pool
	deduper  dedupe.Deduper
	gate     *scoring.Gate

	// Configuration
	writerLanes     int
	writerQueueSize int
	idempotencySize int
	minRanked       int
	maxFavored      int

	now   func() time.Time
	newID func() string

	// State
	started bool

	tracer trace.Tracer
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		writerLanes:     8,
		writerQueueSize: 1024,
		idempotencySize: 10_000,
		minRanked:       scoring.DefaultMinRankedForScore,
		maxFavored:      32,
		now:             time.Now,
		newID:           uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.gate = scoring.NewGate(scoring.WithMinRanked(s.minRanked))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.idempotencySize))
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.store == nil {
		s.store = repository.NewTreapStore(ctx)
		s.logger.Info(ctx, "using in-memory treap store")
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}

	s.lanes = workerpool.NewPool(
		workerpool.WithLanes(s.writerLanes),
		workerpool.WithQueueSize(s.writerQueueSize),
		workerpool.WithPoolLogger(s.logger.Named("lanes")),
	)
	s.lanes.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("writer_lanes", s.writerLanes),
		logger.Int("writer_queue_size", s.writerQueueSize),
		logger.Int("min_ranked_for_score", s.minRanked),
	)
	return nil
}

// Stop drains the write lanes and closes the stores.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	// Queued commands still run after this, so no lane callback may take s.mu.
	s.started = false
	lanes, sessions, store := s.lanes, s.sessions, s.store
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping ranking service...")
	if err := lanes.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "write lanes did not drain", logger.Error(err))
	}
	if err := sessions.Close(); err != nil {
		s.logger.Warn(ctx, "closing session store", logger.Error(err))
	}
	if err := store.Close(); err != nil {
		s.logger.Warn(ctx, "closing rank store", logger.Error(err))
	}
	s.logger.Info(ctx, "ranking service stopped")
}

// Sentiments lists the selectable judgments, most preferred first.
func (s *Service) Sentiments() []sentiment.Option {
	return sentiment.Options()
}

// DetectAffinity reports the viewer's relation to the sides of item.
func (s *Service) DetectAffinity(item model.Matchup, favored []string) (model.Affinity, error) {
	if err := s.checkFavored(favored); err != nil {
		return "", err
	}
	return affinity.Detect(item, favored), nil
}

// Score derives the display score of position in a list of total items.
func (s *Service) Score(position, total int) (scoring.Display, error) {
	if err := scoring.Validate(position, total); err != nil {
		return scoring.Display{}, err
	}
	return scoring.Shown(scoring.DeriveScore(position, total)), nil
}

// Begin opens a ranking session for item. The user's current list is
// snapshotted; the session fails with wizard.ErrAlreadyRanked when the item
// is already in it.
func (s *Service) Begin(ctx context.Context, userID string, item model.Matchup, favored []string) (types.Session, error) {
	ctx, span := s.startSpan(ctx, "Begin", userID)
	defer span.End()

	if err := s.checkUser(userID); err != nil {
		return types.Session{}, s.fail(ctx, span, "begin", err)
	}
	if strings.TrimSpace(item.ItemID) == "" {
		return types.Session{}, s.fail(ctx, span, "begin", fmt.Errorf("%w: missing item_id", ErrInvalidInput))
	}
	if err := s.checkFavored(favored); err != nil {
		return types.Session{}, s.fail(ctx, span, "begin", err)
	}

	v, err := s.onLane(ctx, userID, "begin", func(ctx context.Context) (any, error) {
		return s.begin(ctx, userID, item, favored)
	})
	if err != nil {
		return types.Session{}, s.fail(ctx, span, "begin", err)
	}
	view := v.(types.Session)
	span.SetAttributes(attribute.String("session.id", view.ID))
	return view, nil
}

// begin must run on the user's lane.
func (s *Service) begin(ctx context.Context, userID string, item model.Matchup, favored []string) (types.Session, error) {
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return types.Session{}, err
	}
	sess := wizard.New(s.newID(), userID, item, favored, s.now())
	if err := sess.Load(list); err != nil {
		return types.Session{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return types.Session{}, err
	}
	metrics.RecordSessionStarted()
	s.logger.Debug(ctx, "ranking session opened",
		logger.String("user_id", userID),
		logger.String("item_id", item.ItemID),
		logger.String("session_id", sess.ID),
		logger.String("detected_affinity", string(sess.Detected)),
		logger.Int("list_size", len(list)),
	)
	return types.NewSession(sess, s.gate), nil
}

// Session returns the current state of an open session.
func (s *Service) Session(ctx context.Context, userID, sessionID string) (types.Session, error) {
	ctx, span := s.startSpan(ctx, "Session", userID)
	defer span.End()

	if !s.isStarted() {
		return types.Session{}, s.fail(ctx, span, "session", ErrNotStarted)
	}
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return types.Session{}, s.fail(ctx, span, "session", err)
	}
	return types.NewSession(sess, s.gate), nil
}

// ConfirmAffinity answers the fan prompt. A nil override keeps the detected value.
func (s *Service) ConfirmAffinity(ctx context.Context, userID, sessionID string, override *model.Affinity) (types.Session, error) {
	return s.step(ctx, userID, sessionID, "confirm_affinity", func(sess *wizard.Session) error {
		return sess.ConfirmAffinity(override)
	})
}

// ChooseSentiment records the bucket and either places the item directly or
// starts the comparison search.
func (s *Service) ChooseSentiment(ctx context.Context, userID, sessionID string, sent model.Sentiment) (types.Session, error) {
	return s.step(ctx, userID, sessionID, "choose_sentiment", func(sess *wizard.Session) error {
		if err := sess.ChooseSentiment(sent); err != nil {
			return err
		}
		if sess.Direct {
			metrics.RecordDirectPlacement(sess.Reason)
		}
		return nil
	})
}

// Compare applies one head-to-head answer.
func (s *Service) Compare(ctx context.Context, userID, sessionID string, r model.ComparisonResult) (types.Session, error) {
	return s.step(ctx, userID, sessionID, "compare", func(sess *wizard.Session) error {
		if err := sess.Compare(r); err != nil {
			return err
		}
		metrics.RecordComparison(string(r))
		return nil
	})
}

// step loads a session on the user's lane, applies fn and saves the result.
// A failing fn leaves the stored session untouched.
func (s *Service) step(ctx context.Context, userID, sessionID, op string, fn func(*wizard.Session) error) (types.Session, error) {
	ctx, span := s.startSpan(ctx, op, userID)
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	v, err := s.onLane(ctx, userID, op, func(ctx context.Context) (any, error) {
		sess, err := s.loadOwned(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, err
		}
		return types.NewSession(sess, s.gate), nil
	})
	if err != nil {
		return types.Session{}, s.fail(ctx, span, op, err, logger.String("session_id", sessionID))
	}
	view := v.(types.Session)
	s.logger.Debug(ctx, "session advanced",
		logger.String("user_id", userID),
		logger.String("session_id", sessionID),
		logger.String("op", op),
		logger.String("step", view.Step),
	)
	return view, nil
}

// Confirm writes the placed item into the Rank Store.
//
// The session is dropped with ErrStaleSession when the user's list no longer
// matches the snapshot it was opened with. Any other failure keeps the
// session so the same placement can be retried. A non-empty idempotencyKey
// makes a retried confirm replay its first successful result.
func (s *Service) Confirm(ctx context.Context, userID, sessionID, idempotencyKey string) (types.Entry, error) {
	ctx, span := s.startSpan(ctx, "Confirm", userID)
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	v, err := s.onLane(ctx, userID, "confirm", func(ctx context.Context) (any, error) {
		key := ""
		if idempotencyKey != "" {
			key = userID + ":" + idempotencyKey
			if prev, ok := s.deduper.Recall(ctx, key); ok {
				metrics.RecordConfirmReplay()
				return prev, nil
			}
			s.deduper.SeenAndRecord(ctx, key)
		}
		entry, err := s.confirm(ctx, userID, sessionID)
		if key != "" {
			if err != nil {
				s.deduper.Unrecord(ctx, key)
			} else {
				s.deduper.Remember(ctx, key, entry)
			}
		}
		return entry, err
	})
	if err != nil {
		return types.Entry{}, s.fail(ctx, span, "confirm", err, logger.String("session_id", sessionID))
	}
	entry := v.(types.Entry)
	span.SetAttributes(attribute.Int("rank.position", entry.Rank), attribute.Int("rank.total", entry.Total))
	return entry, nil
}

// confirm must run on the user's lane.
func (s *Service) confirm(ctx context.Context, userID, sessionID string) (types.Entry, error) {
	sess, err := s.loadOwned(ctx, userID, sessionID)
	if err != nil {
		return types.Entry{}, err
	}
	p, err := sess.Placement()
	if err != nil {
		return types.Entry{}, err
	}

	current, err := s.store.List(ctx, userID)
	if err != nil {
		return types.Entry{}, err
	}
	if !sameList(sess.List, current) {
		s.dropSession(ctx, sess.ID, outcomeStale)
		return types.Entry{}, fmt.Errorf("%w: snapshot had %d items, list has %d", ErrStaleSession, len(sess.List), len(current))
	}

	item, err := s.store.InsertAt(ctx, userID, sess.Item.ItemID, p.Position, model.Meta{
		Sentiment: p.Sentiment,
		Affinity:  p.Affinity,
	})
	if err != nil {
		return types.Entry{}, err
	}

	s.dropSession(ctx, sess.ID, outcomeConfirmed)
	metrics.RecordComparisonsPerRanking(sess.Comparisons)
	total := len(current) + 1
	s.logger.Debug(ctx, "ranking confirmed",
		logger.String("user_id", userID),
		logger.String("item_id", item.ItemID),
		logger.String("session_id", sessionID),
		logger.Int("position", item.Position),
		logger.Int("total", total),
		logger.Int("comparisons", sess.Comparisons),
		logger.Bool("direct", sess.Direct),
	)
	return types.NewEntry(item, total, s.gate), nil
}

// Cancel abandons a session. Nothing was persisted, so there is nothing to undo.
func (s *Service) Cancel(ctx context.Context, userID, sessionID string) error {
	ctx, span := s.startSpan(ctx, "Cancel", userID)
	defer span.End()

	_, err := s.onLane(ctx, userID, "cancel", func(ctx context.Context) (any, error) {
		sess, err := s.loadOwned(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		s.dropSession(ctx, sess.ID, outcomeCancelled)
		return nil, nil
	})
	if err != nil {
		return s.fail(ctx, span, "cancel", err, logger.String("session_id", sessionID))
	}
	return nil
}

// Remove deletes a ranked item and closes the gap it leaves.
func (s *Service) Remove(ctx context.Context, userID, itemID string) (types.Entry, error) {
	ctx, span := s.startSpan(ctx, "Remove", userID)
	defer span.End()

	v, err := s.onLane(ctx, userID, "remove", func(ctx context.Context) (any, error) {
		return s.remove(ctx, userID, itemID)
	})
	if err != nil {
		return types.Entry{}, s.fail(ctx, span, "remove", err, logger.String("item_id", itemID))
	}
	return v.(types.Entry), nil
}

// remove must run on the user's lane.
func (s *Service) remove(ctx context.Context, userID, itemID string) (types.Entry, error) {
	total, err := s.store.Count(ctx, userID)
	if err != nil {
		return types.Entry{}, err
	}
	removed, err := s.store.RemoveAt(ctx, userID, itemID)
	if err != nil {
		return types.Entry{}, err
	}
	s.logger.Debug(ctx, "ranking removed",
		logger.String("user_id", userID),
		logger.String("item_id", itemID),
		logger.Int("position", removed.Position),
	)
	return types.NewEntry(removed, total, s.gate), nil
}

// Rerank removes an item and opens a fresh session for it. The old position
// is gone once this returns, even if the new session is later abandoned.
func (s *Service) Rerank(ctx context.Context, userID string, item model.Matchup, favored []string) (types.Session, error) {
	ctx, span := s.startSpan(ctx, "Rerank", userID)
	defer span.End()

	if err := s.checkFavored(favored); err != nil {
		return types.Session{}, s.fail(ctx, span, "rerank", err)
	}
	v, err := s.onLane(ctx, userID, "rerank", func(ctx context.Context) (any, error) {
		if _, err := s.remove(ctx, userID, item.ItemID); err != nil {
			return nil, err
		}
		return s.begin(ctx, userID, item, favored)
	})
	if err != nil {
		return types.Session{}, s.fail(ctx, span, "rerank", err, logger.String("item_id", item.ItemID))
	}
	return v.(types.Session), nil
}

// UpdateMeta changes sentiment and/or affinity of a ranked item without
// moving it. Nil arguments keep the stored value.
func (s *Service) UpdateMeta(ctx context.Context, userID, itemID string, sent *model.Sentiment, aff *model.Affinity) (types.Entry, error) {
	ctx, span := s.startSpan(ctx, "UpdateMeta", userID)
	defer span.End()

	if sent != nil && !sent.Valid() {
		return types.Entry{}, s.fail(ctx, span, "update_meta", fmt.Errorf("%w: %d", sentiment.ErrUnknownSentiment, *sent))
	}
	if aff != nil && !aff.Valid() {
		return types.Entry{}, s.fail(ctx, span, "update_meta", fmt.Errorf("%w: %q", affinity.ErrUnknownAffinity, *aff))
	}

	v, err := s.onLane(ctx, userID, "update_meta", func(ctx context.Context) (any, error) {
		cur, err := s.store.Get(ctx, userID, itemID)
		if err != nil {
			return nil, err
		}
		meta := model.Meta{Sentiment: cur.Sentiment, Affinity: cur.Affinity}
		if sent != nil {
			meta.Sentiment = *sent
		}
		if aff != nil {
			meta.Affinity = *aff
		}
		updated, err := s.store.SetMeta(ctx, userID, itemID, meta)
		if err != nil {
			return nil, err
		}
		total, err := s.store.Count(ctx, userID)
		if err != nil {
			return nil, err
		}
		return types.NewEntry(updated, total, s.gate), nil
	})
	if err != nil {
		return types.Entry{}, s.fail(ctx, span, "update_meta", err, logger.String("item_id", itemID))
	}
	return v.(types.Entry), nil
}

// List returns the user's ranking with scores when the list is long enough.
func (s *Service) List(ctx context.Context, userID string) (types.Ranking, error) {
	ctx, span := s.startSpan(ctx, "List", userID)
	defer span.End()

	if !s.isStarted() {
		return types.Ranking{}, s.fail(ctx, span, "list", ErrNotStarted)
	}
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return types.Ranking{}, s.fail(ctx, span, "list", err)
	}
	return types.NewRanking(userID, list, s.gate), nil
}

// Get returns one ranked item as "#N of M".
func (s *Service) Get(ctx context.Context, userID, itemID string) (types.Entry, error) {
	ctx, span := s.startSpan(ctx, "Get", userID)
	defer span.End()

	if !s.isStarted() {
		return types.Entry{}, s.fail(ctx, span, "get", ErrNotStarted)
	}
	it, err := s.store.Get(ctx, userID, itemID)
	if err != nil {
		return types.Entry{}, s.fail(ctx, span, "get", err, logger.String("item_id", itemID))
	}
	total, err := s.store.Count(ctx, userID)
	if err != nil {
		return types.Entry{}, s.fail(ctx, span, "get", err, logger.String("item_id", itemID))
	}
	return types.NewEntry(it, total, s.gate), nil
}

// Ping checks the backing stores.
func (s *Service) Ping(ctx context.Context) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("rank store: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

// Store exposes the Rank Store for background jobs such as the audit.
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":              s.started,
		"writer_lanes":         s.writerLanes,
		"writer_queue_size":    s.writerQueueSize,
		"min_ranked_for_score": s.minRanked,
		"idempotency_keys":     s.deduper.Size(),
	}

	if s.started {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stats["queued_writes"] = s.lanes.Depth(ctx)
		users, items, err := s.store.Totals(ctx)
		if err != nil {
			stats["store_error"] = err.Error()
		} else {
			stats["ranked_users"] = users
			stats["ranked_items"] = items
		}
	}
	return stats
}

// onLane runs fn on the user's write lane.
func (s *Service) onLane(ctx context.Context, userID, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	s.mu.RLock()
	started, lanes := s.started, s.lanes
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	return lanes.Submit(ctx, userID, op, fn)
}

func (s *Service) loadOwned(ctx context.Context, userID, sessionID string) (*wizard.Session, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, sessionID)
	}
	return sess, nil
}

func (s *Service) dropSession(ctx context.Context, sessionID, outcome string) {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.logger.Warn(ctx, "failed to delete session",
			logger.String("session_id", sessionID),
			logger.Error(err),
		)
	}
	metrics.RecordSessionFinished(outcome)
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkFavored(favored []string) error {
	if len(favored) > s.maxFavored {
		return fmt.Errorf("%w: %d favored sides, at most %d allowed", ErrInvalidInput, len(favored), s.maxFavored)
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, op, userID string) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return tracer.Start(ctx, "service."+op, trace.WithAttributes(attribute.String("user.id", userID)))
}

// fail records err on the span and in the logs, then returns it unchanged.
// Expected caller mistakes log at debug; everything else at warn.
func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error, fields ...logger.Field) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields = append(fields, logger.String("op", op), logger.Error(err))
	if s.logger == nil {
		return err
	}
	if isCallerError(err) {
		s.logger.Debug(ctx, "request rejected", fields...)
	} else {
		s.logger.Warn(ctx, "operation failed", fields...)
		metrics.RecordErrorByComponent("service", op)
	}
	return err
}

func isCallerError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrSessionNotFound, ErrForbidden, ErrStaleSession,
		wizard.ErrInvalidTransition, wizard.ErrAlreadyRanked,
		repository.ErrAlreadyRanked, repository.ErrNotRanked, repository.ErrInvalidPosition,
		sentiment.ErrUnknownSentiment, affinity.ErrUnknownAffinity, comparison.ErrInvalidResult,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// sameList reports whether two lists hold the same items in the same order
// with the same sentiment buckets.
func sameList(snapshot, current []model.RankedItem) bool {
	if len(snapshot) != len(current) {
		return false
	}
	for i := range snapshot {
		if snapshot[i].ItemID != current[i].ItemID || snapshot[i].Sentiment != current[i].Sentiment {
			return false
		}
	}
	return true
}
