package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/domain/users"

	"golang.org/x/sync/errgroup"
)

// PromoteAdmin grants the admin flag to the user with this email. The
// user must have signed in at least once.
func (s *Service) PromoteAdmin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}

	if err := s.repos.Users.SetAdminByEmail(ctx, email, true); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Infow("user promoted to admin", "email", email)
	return nil
}

func (s *Service) AdminStatus(ctx context.Context, email string) (*users.AdminStatus, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "is required"}
	}

	p, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &users.AdminStatus{Email: p.Email, IsAdmin: p.IsAdmin}, nil
}

// Dashboard is the admin panel's initial load.
type Dashboard struct {
	Entries []entries.Entry  `json:"entries"`
	Reviews []reviews.Review `json:"reviews"`
}

// Dashboard loads all entries and all reviews concurrently. When the
// deadline passes it returns ErrDashboardTimeout at once; the cancelled
// queries finish in the background.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dashboardTimeout)
	defer cancel()

	var list []entries.Entry
	var revs []reviews.Review

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		list, err = s.repos.Entries.ListAll(gctx)
		if err != nil {
			return fmt.Errorf("load entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		revs, err = s.repos.Reviews.ListAll(gctx)
		if err != nil {
			return fmt.Errorf("load reviews: %w", err)
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrDashboardTimeout
			}
			return nil, err
		}
		return &Dashboard{Entries: list, Reviews: revs}, nil
	case <-ctx.Done():
		s.logger.Warnw("dashboard load abandoned", "timeout", s.dashboardTimeout, "error", ctx.Err())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrDashboardTimeout
		}
		return nil, ctx.Err()
	}
}

// TableHealth is the row count of one table, or why it could not be read.
type TableHealth struct {
	OK    bool   `json:"ok"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type Health struct {
	Status string                 `json:"status"`
	Tables map[string]TableHealth `json:"tables"`
}

// Healthy is false only when the entries table cannot be read; the other
// tables are informational.
func (h *Health) Healthy() bool {
	return h.Status == "ok"
}

func (s *Service) Health(ctx context.Context) *Health {
	probe := func(count func(context.Context) (int, error)) TableHealth {
		n, err := count(ctx)
		if err != nil {
			return TableHealth{Error: err.Error()}
		}
		return TableHealth{OK: true, Count: n}
	}

	h := &Health{
		Status: "ok",
		Tables: map[string]TableHealth{
			"casinos": probe(s.repos.Entries.Count),
			"reviews": probe(s.repos.Reviews.Count),
			"users":   probe(s.repos.Users.Count),
		},
	}
	if !h.Tables["casinos"].OK {
		h.Status = "error"
		s.logger.Warnw("health check degraded", "error", h.Tables["casinos"].Error)
	}
	return h
}
