package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/courtside/internal/adapters/mq/queue"
	"github.com/okian/courtside/internal/adapters/mq/worker"
	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/adapters/session"
	service "github.com/okian/courtside/internal/app"
	"github.com/okian/courtside/internal/domain/affinity"
	"github.com/okian/courtside/internal/domain/comparison"
	"github.com/okian/courtside/internal/domain/scoring"
	"github.com/okian/courtside/internal/domain/sentiment"
	"github.com/okian/courtside/internal/domain/wizard"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing or invalid bearer token")
	ErrWrongSubject = errors.New("token subject does not match user")
)

// retryAfterSeconds is sent with every 503.
const retryAfterSeconds = "1"

type errorMapping struct {
	targets []error
	status  int
	code    string
}

var errorMappings = []errorMapping{
	{[]error{repository.ErrAlreadyRanked, wizard.ErrAlreadyRanked}, http.StatusConflict, "already_ranked"},
	{[]error{service.ErrStaleSession}, http.StatusConflict, "stale_session"},
	{[]error{wizard.ErrInvalidTransition}, http.StatusConflict, "invalid_transition"},
	{[]error{repository.ErrNotRanked}, http.StatusNotFound, "not_ranked"},
	{[]error{service.ErrSessionNotFound}, http.StatusNotFound, "session_not_found"},
	{[]error{service.ErrForbidden, ErrWrongSubject}, http.StatusForbidden, "forbidden"},
	{[]error{ErrUnauthorized}, http.StatusUnauthorized, "unauthorized"},
	{[]error{repository.ErrInvalidPosition, scoring.ErrInvalidPosition}, http.StatusBadRequest, "invalid_position"},
	{[]error{
		ErrBadRequest, service.ErrInvalidInput,
		sentiment.ErrUnknownSentiment, affinity.ErrUnknownAffinity, comparison.ErrInvalidResult,
	}, http.StatusBadRequest, "bad_request"},
	{[]error{
		repository.ErrStorageUnavailable, queue.ErrFull, queue.ErrClosed, worker.ErrStopped,
		session.ErrUnavailable, service.ErrNotStarted, context.DeadlineExceeded,
	}, http.StatusServiceUnavailable, "unavailable"},
}

// classify maps an error onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError renders err; 5xx messages are not echoed to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status >= http.StatusInternalServerError {
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
