package entries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casinodir/internal/infra/dbx"
	"casinodir/internal/rating"

	"github.com/jackc/pgx/v5"
)

// SlugConstraint is the unique index on casinos.slug.
const SlugConstraint = "casinos_slug_key"

type Store interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	GetBySlug(ctx context.Context, slug string) (*Entry, error)
	List(ctx context.Context, f Filter) ([]Entry, int, error)
	ListAll(ctx context.Context) ([]Entry, error)
	ListSisterSites(ctx context.Context, parentID string) ([]Entry, error)
	Facets(ctx context.Context) (*Facets, error)
	Update(ctx context.Context, id string, p Patch) error
	Delete(ctx context.Context, id string) error
	ClearSisterReferences(ctx context.Context, id string) (int64, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	ListMissingSlug(ctx context.Context) ([]SlugStub, error)
	SetSlug(ctx context.Context, id, slug string) error
	LockForUpdate(ctx context.Context, id string) error
	WriteAggregate(ctx context.Context, id string, agg rating.Aggregate) error
	Count(ctx context.Context) (int, error)
}

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

const entryColumns = `
	id::text, name, COALESCE(slug, ''), entry_type, logo_url, bonus, license,
	description, country, payment_methods, rating_avg, rating_count,
	title, meta_description, promo_code, promo_code_expires_at, editorial_rating,
	sister_site_of::text, external_url, verified, is_featured, created_at, updated_at`

// ordering shared by the listing and sister-site queries
const entryOrder = `ORDER BY is_featured DESC, editorial_rating DESC NULLS LAST, rating_avg DESC, name ASC`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var kind string
	err := row.Scan(
		&e.ID, &e.Name, &e.Slug, &kind, &e.LogoURL, &e.Bonus, &e.License,
		&e.Description, &e.Country, &e.PaymentMethods, &e.RatingAvg, &e.RatingCount,
		&e.Title, &e.MetaDescription, &e.PromoCode, &e.PromoCodeExpiresAt, &e.EditorialRating,
		&e.SisterSiteOf, &e.ExternalURL, &e.Verified, &e.IsFeatured, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = Type(kind)
	if e.PaymentMethods == nil {
		e.PaymentMethods = []string{}
	}
	return &e, nil
}

func collect(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Create inserts e and fills in the store-assigned fields. A slug clash
// returns ErrSlugTaken.
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	if e.PaymentMethods == nil {
		e.PaymentMethods = []string{}
	}

	query := `
		INSERT INTO casinos (
			name, slug, entry_type, logo_url, bonus, license, description, country,
			payment_methods, title, meta_description, promo_code, promo_code_expires_at,
			editorial_rating, sister_site_of, external_url, verified, is_featured
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id::text, rating_avg, rating_count, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		e.Name, e.Slug, string(e.Type), e.LogoURL, e.Bonus, e.License, e.Description, e.Country,
		e.PaymentMethods, e.Title, e.MetaDescription, e.PromoCode, e.PromoCodeExpiresAt,
		e.EditorialRating, e.SisterSiteOf, e.ExternalURL, e.Verified, e.IsFeatured,
	).Scan(&e.ID, &e.RatingAvg, &e.RatingCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, SlugConstraint) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM casinos WHERE id = $1`

	e, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry by id: %w", err)
	}
	return e, nil
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM casinos WHERE slug = $1`

	e, err := scanEntry(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry by slug: %w", err)
	}
	return e, nil
}

// buildWhere turns a Filter into a WHERE clause and its arguments.
func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR bonus ILIKE $%d OR COALESCE(description, '') ILIKE $%d)", n, n, n))
	}
	if f.Type != "" {
		add("entry_type = $%d", string(f.Type))
	}
	if f.License != "" {
		add("license = $%d", f.License)
	}
	if f.Country != "" {
		add("country = $%d", f.Country)
	}
	if f.MinRating > 0 {
		add("rating_avg >= $%d", f.MinRating)
	}
	if f.PromoOnly {
		conds = append(conds, "promo_code IS NOT NULL AND promo_code <> '' AND (promo_code_expires_at IS NULL OR promo_code_expires_at > now())")
	}
	if f.Verified != nil {
		add("verified = $%d", *f.Verified)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of entries matching f and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM casinos`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM casinos` + where + ` ` + entryOrder
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan entries: %w", err)
	}
	return out, total, nil
}

// ListAll is the unpaginated admin view, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM casinos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return collect(rows)
}

func (r *Repository) ListSisterSites(ctx context.Context, parentID string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM casinos WHERE sister_site_of = $1 ` + entryOrder

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list sister sites: %w", err)
	}
	return collect(rows)
}

func (r *Repository) Facets(ctx context.Context) (*Facets, error) {
	query := `
		SELECT
			COALESCE(ARRAY(SELECT DISTINCT license FROM casinos WHERE license <> '' ORDER BY license), '{}'),
			COALESCE(ARRAY(SELECT DISTINCT country FROM casinos WHERE country IS NOT NULL AND country <> '' ORDER BY country), '{}')`

	f := &Facets{}
	if err := r.db.QueryRow(ctx, query).Scan(&f.Licenses, &f.Countries); err != nil {
		return nil, fmt.Errorf("entry facets: %w", err)
	}
	return f, nil
}

// Update applies the fields present in p. A cleared Nullable field writes
// NULL.
func (r *Repository) Update(ctx context.Context, id string, p Patch) error {
	if p.Empty() {
		return ErrNoChanges
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	setNull := func(col string) {
		sets = append(sets, col+" = NULL")
	}
	nullable := func(col string, present, null bool, v any) {
		switch {
		case !present:
		case null:
			setNull(col)
		default:
			set(col, v)
		}
	}

	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Slug != nil {
		set("slug", *p.Slug)
	}
	if p.Type != nil {
		set("entry_type", string(*p.Type))
	}
	if p.LogoURL != nil {
		set("logo_url", *p.LogoURL)
	}
	if p.Bonus != nil {
		set("bonus", *p.Bonus)
	}
	if p.License != nil {
		set("license", *p.License)
	}
	nullable("description", p.Description.Set, p.Description.Null, p.Description.Value)
	nullable("country", p.Country.Set, p.Country.Null, p.Country.Value)
	if p.PaymentMethods != nil {
		set("payment_methods", *p.PaymentMethods)
	}
	nullable("title", p.Title.Set, p.Title.Null, p.Title.Value)
	nullable("meta_description", p.MetaDescription.Set, p.MetaDescription.Null, p.MetaDescription.Value)
	nullable("promo_code", p.PromoCode.Set, p.PromoCode.Null, p.PromoCode.Value)
	nullable("promo_code_expires_at", p.PromoCodeExpiresAt.Set, p.PromoCodeExpiresAt.Null, p.PromoCodeExpiresAt.Value)
	nullable("editorial_rating", p.EditorialRating.Set, p.EditorialRating.Null, p.EditorialRating.Value)
	// "" detaches the entry from its parent, same as null
	nullable("sister_site_of", p.SisterSiteOf.Set, p.SisterSiteOf.Null || p.SisterSiteOf.Value == "", p.SisterSiteOf.Value)
	nullable("external_url", p.ExternalURL.Set, p.ExternalURL.Null, p.ExternalURL.Value)
	if p.Verified != nil {
		set("verified", *p.Verified)
	}
	if p.IsFeatured != nil {
		set("is_featured", *p.IsFeatured)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE casinos SET %s, updated_at = now() WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if dbx.IsUniqueViolation(err, SlugConstraint) {
			return ErrSlugTaken
		}
		return fmt.Errorf("update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM casinos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSisterReferences nulls sister_site_of on every entry pointing at id.
func (r *Repository) ClearSisterReferences(ctx context.Context, id string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE casinos SET sister_site_of = NULL, updated_at = now() WHERE sister_site_of = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("clear sister references: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SlugExists reports whether another entry (not excludeID) already owns slug.
func (r *Repository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM casinos WHERE slug = $1 AND id::text <> $2)`
	if err := r.db.QueryRow(ctx, query, slug, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("slug exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) ListMissingSlug(ctx context.Context) ([]SlugStub, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text, name FROM casinos WHERE slug IS NULL OR slug = '' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list entries without slug: %w", err)
	}
	defer rows.Close()

	var out []SlugStub
	for rows.Next() {
		var s SlugStub
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) SetSlug(ctx context.Context, id, slug string) error {
	tag, err := r.db.Exec(ctx, `UPDATE casinos SET slug = $1, updated_at = now() WHERE id = $2`, slug, id)
	if err != nil {
		if dbx.IsUniqueViolation(err, SlugConstraint) {
			return ErrSlugTaken
		}
		return fmt.Errorf("set slug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockForUpdate takes the row lock that serialises aggregate writers.
// Only meaningful inside a transaction.
func (r *Repository) LockForUpdate(ctx context.Context, id string) error {
	var got string
	err := r.db.QueryRow(ctx, `SELECT id::text FROM casinos WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock entry: %w", err)
	}
	return nil
}

func (r *Repository) WriteAggregate(ctx context.Context, id string, agg rating.Aggregate) error {
	tag, err := r.db.Exec(ctx, `UPDATE casinos SET rating_avg = $1, rating_count = $2 WHERE id = $3`, agg.Avg, agg.Count, id)
	if err != nil {
		return fmt.Errorf("write aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM casinos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}
