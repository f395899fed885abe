package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casinodir/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Store interface {
	EnsureProfile(ctx context.Context, id, email string) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	SetAdminByEmail(ctx context.Context, email string, admin bool) error
	Count(ctx context.Context) (int, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.IsAdmin, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// EnsureProfile creates the profile row on first sight of an identity and
// keeps the email in sync afterwards. A token without an email keeps the
// stored one. is_admin is never touched here.
func (r *Repository) EnsureProfile(ctx context.Context, id, email string) (*Profile, error) {
	query := `
		INSERT INTO users (id, email)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email)
		RETURNING id::text, email, name, is_admin, created_at`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProfile(r.db.QueryRow(ctx, query, id, strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT id::text, email, name, is_admin, created_at FROM users WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT id::text, email, name, is_admin, created_at FROM users WHERE lower(email) = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	p, err := scanProfile(r.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return p, nil
}

// SetAdminByEmail returns ErrNotFound when nobody with that email has
// signed up yet.
func (r *Repository) SetAdminByEmail(ctx context.Context, email string, admin bool) error {
	query := `UPDATE users SET is_admin = $1 WHERE lower(email) = $2`

	tag, err := r.db.Exec(ctx, query, admin, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
