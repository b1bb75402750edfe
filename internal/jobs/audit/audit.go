// Package audit periodically checks that every user's positions form a
// dense 1..N permutation.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/okian/courtside/internal/adapters/repository"
	"github.com/okian/courtside/internal/domain/model"
	"github.com/okian/courtside/pkg/logger"
	"github.com/okian/courtside/pkg/metrics"
)

// ErrEmptySchedule is returned by Start when no schedule was configured.
var ErrEmptySchedule = errors.New("empty audit schedule")

// Source is the read side of the Rank Store the audit needs.
type Source interface {
	Users(ctx context.Context) ([]string, error)
	List(ctx context.Context, userID string) ([]model.RankedItem, error)
}

// Report is the outcome of one audit pass.
type Report struct {
	Users      int
	Items      int
	Violations map[string]error
}

// Option applies a configuration option to the Auditor.
type Option func(*Auditor)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.logger = l
		}
	}
}

// Auditor runs the permutation check, on demand or on a cron schedule.
type Auditor struct {
	source Source
	logger logger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates an Auditor over source.
func New(source Source, opts ...Option) *Auditor {
	a := &Auditor{source: source}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("audit")
	}
	return a
}

// Run audits every user once.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	users, err := a.source.Users(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("audit: list users: %w", err)
	}
	metrics.RecordAuditRun()

	rep := Report{Users: len(users), Violations: map[string]error{}}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		list, err := a.source.List(ctx, u)
		if err != nil {
			return rep, fmt.Errorf("audit: list %s: %w", u, err)
		}
		rep.Items += len(list)
		if err := repository.VerifyPermutation(list); err != nil {
			rep.Violations[u] = err
			metrics.RecordAuditViolation()
			a.logger.Error(ctx, "ranking invariant violated",
				logger.String("user_id", u),
				logger.Int("items", len(list)),
				logger.Error(err),
			)
		}
	}
	a.logger.Info(ctx, "audit finished",
		logger.Int("users", rep.Users),
		logger.Int("items", rep.Items),
		logger.Int("violations", len(rep.Violations)),
	)
	return rep, nil
}

// Start schedules Run with a standard cron spec or a descriptor such as
// "@every 10m". Overlapping runs are skipped.
func (a *Auditor) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return ErrEmptySchedule
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { a.tick(ctx) }); err != nil {
		return fmt.Errorf("audit: schedule %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	a.logger.Info(ctx, "audit scheduled", logger.String("schedule", spec))
	return nil
}

func (a *Auditor) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.Run(ctx); err != nil {
		a.logger.Warn(ctx, "audit run failed", logger.Error(err))
	}
}

// Stop halts the schedule and waits for a running audit to finish.
func (a *Auditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
