package service

import (
	"time"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/session"
	"github.com/okian/courtside/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the Rank Store. The in-memory treap store is used otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSessionStore sets where in-flight sessions live.
func WithSessionStore(store session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithWriterLanes sets the number of single-writer lanes.
func WithWriterLanes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writerLanes = n
		}
	}
}

// WithWriterQueueSize sets the capacity of each lane.
func WithWriterQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.writerQueueSize = n
		}
	}
}

// WithIdempotencySize bounds the remembered confirm keys.
func WithIdempotencySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.idempotencySize = n
		}
	}
}

// WithMinRankedForScore sets the list size from which scores are shown.
func WithMinRankedForScore(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minRanked = n
		}
	}
}

// WithMaxFavoredSides caps the favored sides accepted per request.
func WithMaxFavoredSides(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFavored = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for service spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session id generation, mostly for tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}
