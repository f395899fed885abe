package reviews

import (
	"context"
	"errors"
	"fmt"

	"casinodir/internal/domain/entries"
	"casinodir/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Store interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	ListByEntry(ctx context.Context, entryID string) ([]Review, error)
	ListAll(ctx context.Context) ([]Review, error)
	Delete(ctx context.Context, id string) error
	DeleteByEntry(ctx context.Context, entryID string) (int64, error)
	Ratings(ctx context.Context, entryID string) ([]int, error)
	Count(ctx context.Context) (int, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

const reviewColumns = `id::text, casino_id::text, user_id::text, username, rating, comment, created_at`

func scanReviews(rows pgx.Rows) ([]Review, error) {
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.EntryID, &rv.UserID, &rv.Username, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (s *Repository) Create(ctx context.Context, r *Review) error {
	query := `
		INSERT INTO reviews (casino_id, user_id, username, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at`

	err := s.db.QueryRow(ctx, query, r.EntryID, r.UserID, r.Username, r.Rating, r.Comment).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		// the entry was deleted under us
		if dbx.IsForeignKeyViolation(err) {
			return entries.ErrNotFound
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *Repository) GetByID(ctx context.Context, id string) (*Review, error) {
	var rv Review
	err := s.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id).
		Scan(&rv.ID, &rv.EntryID, &rv.UserID, &rv.Username, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rv, nil
}

func (s *Repository) ListByEntry(ctx context.Context, entryID string) ([]Review, error) {
	rows, err := s.db.Query(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE casino_id = $1 ORDER BY created_at DESC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return scanReviews(rows)
}

func (s *Repository) ListAll(ctx context.Context) ([]Review, error) {
	rows, err := s.db.Query(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all reviews: %w", err)
	}
	return scanReviews(rows)
}

func (s *Repository) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Repository) DeleteByEntry(ctx context.Context, entryID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM reviews WHERE casino_id = $1`, entryID)
	if err != nil {
		return 0, fmt.Errorf("delete reviews of entry: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ratings returns every rating on the entry. No limit: the aggregate must
// see the complete set.
func (s *Repository) Ratings(ctx context.Context, entryID string) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT rating FROM reviews WHERE casino_id = $1`, entryID)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}
