package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/domain/storage"
	"casinodir/internal/metrics"
	"casinodir/internal/slug"

	"github.com/google/uuid"
)

// EntryInput is what an administrator submits to create an entry. Slug is
// optional; when blank it is derived from Name.
type EntryInput struct {
	Name           string       `json:"name" validate:"required,max=200"`
	Slug           string       `json:"slug" validate:"omitempty,max=200"`
	Type           entries.Type `json:"entry_type" validate:"omitempty,entrykind"`
	LogoURL        string       `json:"logo_url" validate:"omitempty,max=1000"`
	Bonus          string       `json:"bonus" validate:"max=500"`
	License        string       `json:"license" validate:"max=200"`
	Description    *string      `json:"description"`
	Country        *string      `json:"country" validate:"omitempty,max=100"`
	PaymentMethods []string     `json:"payment_methods"`
	entries.Optional
}

// EntryView is an entry as listed publicly, with the promo state resolved.
type EntryView struct {
	entries.Entry
	PromoValid bool `json:"promo_valid"`
}

// Detail is everything the entry page shows.
type Detail struct {
	Entry       EntryView        `json:"entry"`
	Reviews     []reviews.Review `json:"reviews"`
	SisterSites []EntryView      `json:"sister_sites"`
	Parent      *EntryView       `json:"parent,omitempty"`
}

func (s *Service) view(e entries.Entry) EntryView {
	return EntryView{Entry: e, PromoValid: e.PromoValid(s.now())}
}

func (s *Service) views(list []entries.Entry) []EntryView {
	out := make([]EntryView, 0, len(list))
	for _, e := range list {
		out = append(out, s.view(e))
	}
	return out
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func checkEditorialRating(v *float64) error {
	if v != nil && (*v < 0 || *v > 5) {
		return &ValidationError{Field: "editorial_rating", Reason: "must be between 0 and 5"}
	}
	return nil
}

func checkSisterOf(ref *string, selfID string) error {
	if ref == nil || *ref == "" {
		return nil
	}
	if !validID(*ref) {
		return &ValidationError{Field: "sister_site_of", Reason: "must be an entry id"}
	}
	if *ref == selfID {
		return &ValidationError{Field: "sister_site_of", Reason: "an entry cannot be its own sister site"}
	}
	return nil
}

// uniqueSlug normalises base and probes the store until a free slug is
// found. excludeID is the entry being edited, or "".
func (s *Service) uniqueSlug(ctx context.Context, base, excludeID string) (string, error) {
	return slug.Resolve(ctx, slug.Generate(base), excludeID, s.repos.Entries.SlugExists)
}

// CreateEntry inserts a new entry with a unique slug. Losing the race on
// the slug index re-resolves and retries.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (*entries.Entry, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}

	kind := entries.TypeCasino
	if in.Type != "" {
		t, err := entries.ParseType(string(in.Type))
		if err != nil {
			return nil, &ValidationError{Field: "entry_type", Reason: err.Error()}
		}
		kind = t
	}
	if err := checkEditorialRating(in.EditorialRating); err != nil {
		return nil, err
	}
	if err := checkSisterOf(in.SisterSiteOf, ""); err != nil {
		return nil, err
	}

	base := strings.TrimSpace(in.Slug)
	if base == "" {
		base = name
	}

	opt := in.Optional
	if opt.SisterSiteOf != nil && *opt.SisterSiteOf == "" {
		opt.SisterSiteOf = nil
	}

	e := &entries.Entry{
		Name:           name,
		Type:           kind,
		LogoURL:        strings.TrimSpace(in.LogoURL),
		Bonus:          strings.TrimSpace(in.Bonus),
		License:        strings.TrimSpace(in.License),
		Description:    in.Description,
		Country:        in.Country,
		PaymentMethods: in.PaymentMethods,
		Optional:       opt,
	}

	for attempt := 1; ; attempt++ {
		final, err := s.uniqueSlug(ctx, base, "")
		if err != nil {
			return nil, err
		}
		e.Slug = final

		err = s.repos.Entries.Create(ctx, e)
		if err == nil {
			break
		}
		if errors.Is(err, entries.ErrSlugTaken) && attempt < maxSlugRetries {
			metrics.SlugCollisions.Inc()
			s.logger.Warnw("slug taken between check and insert, retrying", "slug", final, "attempt", attempt)
			continue
		}
		return nil, err
	}

	metrics.EntriesCreated.WithLabelValues(string(kind)).Inc()
	s.logger.Infow("entry created", "id", e.ID, "slug", e.Slug, "entry_type", kind)
	return e, nil
}

// UpdateEntry applies p. The slug only changes when p carries one
// explicitly; renaming keeps existing links stable.
func (s *Service) UpdateEntry(ctx context.Context, id string, p entries.Patch) (*entries.Entry, error) {
	if !validID(id) {
		return nil, entries.ErrNotFound
	}
	if p.Empty() {
		return nil, &ValidationError{Field: "body", Reason: "no fields to update"}
	}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			return nil, &ValidationError{Field: "name", Reason: "cannot be empty"}
		}
		p.Name = &trimmed
	}
	if p.Type != nil {
		if _, err := entries.ParseType(string(*p.Type)); err != nil {
			return nil, &ValidationError{Field: "entry_type", Reason: err.Error()}
		}
	}
	if err := checkEditorialRating(p.EditorialRating.Ptr()); err != nil {
		return nil, err
	}
	if err := checkSisterOf(p.SisterSiteOf.Ptr(), id); err != nil {
		return nil, err
	}

	current, err := s.repos.Entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	requested := p.Slug
	for attempt := 1; ; attempt++ {
		if requested != nil {
			base := strings.TrimSpace(*requested)
			if base == "" {
				base = current.Name
				if p.Name != nil {
					base = *p.Name
				}
			}
			final, err := s.uniqueSlug(ctx, base, id)
			if err != nil {
				return nil, err
			}
			p.Slug = &final
		}

		err = s.repos.Entries.Update(ctx, id, p)
		if err == nil {
			break
		}
		if errors.Is(err, entries.ErrSlugTaken) && requested != nil && attempt < maxSlugRetries {
			metrics.SlugCollisions.Inc()
			continue
		}
		return nil, err
	}

	updated, err := s.repos.Entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("entry updated", "id", id, "slug", updated.Slug)
	return updated, nil
}

// DeleteEntry removes the entry, its reviews and every sister-site link
// pointing at it in one transaction. It returns the entry as it was so the
// caller can clean up its logo.
func (s *Service) DeleteEntry(ctx context.Context, id string) (*entries.Entry, error) {
	if !validID(id) {
		return nil, entries.ErrNotFound
	}

	var deleted *entries.Entry
	err := s.uow.WithTx(ctx, func(r *storage.Repos) error {
		e, err := r.Entries.GetByID(ctx, id)
		if err != nil {
			return err
		}
		n, err := r.Reviews.DeleteByEntry(ctx, id)
		if err != nil {
			return err
		}
		detached, err := r.Entries.ClearSisterReferences(ctx, id)
		if err != nil {
			return err
		}
		if err := r.Entries.Delete(ctx, id); err != nil {
			return err
		}
		s.logger.Infow("entry deleted", "id", id, "slug", e.Slug, "reviews", n, "detached_sisters", detached)
		deleted = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// SetLogo records a new logo URL on the entry.
func (s *Service) SetLogo(ctx context.Context, id, url string) (*entries.Entry, error) {
	return s.UpdateEntry(ctx, id, entries.Patch{LogoURL: &url})
}

// BackfillSlugs gives every entry without a slug one derived from its name.
// Rows that fail are logged and skipped; the count of updated rows is
// returned.
func (s *Service) BackfillSlugs(ctx context.Context) (int, error) {
	stubs, err := s.repos.Entries.ListMissingSlug(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, stub := range stubs {
		if err := s.backfillOne(ctx, stub); err != nil {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			s.logger.Errorw("slug backfill failed", "id", stub.ID, "name", stub.Name, "error", err)
			continue
		}
		updated++
	}

	s.logger.Infow("slug backfill finished", "candidates", len(stubs), "updated", updated)
	return updated, nil
}

func (s *Service) backfillOne(ctx context.Context, stub entries.SlugStub) error {
	for attempt := 1; ; attempt++ {
		final, err := s.uniqueSlug(ctx, stub.Name, stub.ID)
		if err != nil {
			return err
		}
		err = s.repos.Entries.SetSlug(ctx, stub.ID, final)
		if err == nil {
			return nil
		}
		if errors.Is(err, entries.ErrSlugTaken) && attempt < maxSlugRetries {
			metrics.SlugCollisions.Inc()
			continue
		}
		return fmt.Errorf("set slug %q: %w", final, err)
	}
}

// Search lists entries for the public pages.
func (s *Service) Search(ctx context.Context, f entries.Filter) ([]EntryView, int, error) {
	list, total, err := s.repos.Entries.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return s.views(list), total, nil
}

func (s *Service) Facets(ctx context.Context) (*entries.Facets, error) {
	return s.repos.Entries.Facets(ctx)
}

// lookup resolves a slug, falling back to the id for links created before
// slugs existed.
func (s *Service) lookup(ctx context.Context, slugOrID string) (*entries.Entry, error) {
	e, err := s.repos.Entries.GetBySlug(ctx, slugOrID)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, entries.ErrNotFound) || !validID(slugOrID) {
		return nil, err
	}
	return s.repos.Entries.GetByID(ctx, slugOrID)
}

// EntryDetail loads the entry page: the entry, its reviews, its sister
// sites and, for a sister site, the entry it belongs to.
func (s *Service) EntryDetail(ctx context.Context, slugOrID string) (*Detail, error) {
	e, err := s.lookup(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	revs, err := s.repos.Reviews.ListByEntry(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	sisters, err := s.repos.Entries.ListSisterSites(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	d := &Detail{
		Entry:       s.view(*e),
		Reviews:     revs,
		SisterSites: s.views(sisters),
	}

	if e.SisterSiteOf != nil {
		parent, err := s.repos.Entries.GetByID(ctx, *e.SisterSiteOf)
		switch {
		case err == nil:
			v := s.view(*parent)
			d.Parent = &v
		case errors.Is(err, entries.ErrNotFound):
			// dangling weak reference; nothing to show
		default:
			return nil, err
		}
	}
	return d, nil
}
