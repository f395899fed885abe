// Package directory ties the slug and rating routines to the store: every
// admin or user action goes through a Service method that validates input,
// computes derived fields and performs the writes.
package directory

import (
	"context"
	"errors"
	"time"

	"casinodir/internal/domain/storage"

	"go.uber.org/zap"
)

var (
	ErrForbidden        = errors.New("not allowed to modify this resource")
	ErrUserNotFound     = errors.New("user not found, they must sign up first")
	ErrDashboardTimeout = errors.New("loading the dashboard took too long")
)

// ValidationError reports bad input before anything reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// UnitOfWork runs fn atomically against tx-scoped repositories.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(r *storage.Repos) error) error
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	ID      string
	IsAdmin bool
}

const (
	// slug inserts retried after losing a race on the unique index
	maxSlugRetries = 3

	DefaultDashboardTimeout = 10 * time.Second
)

type Service struct {
	repos            *storage.Repos
	uow              UnitOfWork
	logger           *zap.SugaredLogger
	now              func() time.Time
	dashboardTimeout time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDashboardTimeout(d time.Duration) Option {
	return func(s *Service) { s.dashboardTimeout = d }
}

func New(repos *storage.Repos, uow UnitOfWork, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{
		repos:            repos,
		uow:              uow,
		logger:           logger,
		now:              time.Now,
		dashboardTimeout: DefaultDashboardTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromContainer wires the service to the postgres container.
func NewFromContainer(c *storage.Container, logger *zap.SugaredLogger, opts ...Option) *Service {
	return New(&c.Repos, c, logger, opts...)
}
