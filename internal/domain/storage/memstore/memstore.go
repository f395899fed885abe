// Package memstore is an in-memory stand-in for the postgres repositories,
// used by service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/domain/storage"
	"casinodir/internal/domain/users"
	"casinodir/internal/rating"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	entries  map[string]entries.Entry
	reviews  map[string]reviews.Review
	profiles map[string]users.Profile
	clock    time.Time

	// Fail makes the named method (e.g. "WriteAggregate") return the error.
	Fail map[string]error
	// Calls counts invocations per method name.
	Calls map[string]int
}

func New() *Store {
	return &Store{
		entries:  map[string]entries.Entry{},
		reviews:  map[string]reviews.Review{},
		profiles: map[string]users.Profile{},
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Fail:     map[string]error{},
		Calls:    map[string]int{},
	}
}

// Repos exposes the store through the repository interfaces.
func (s *Store) Repos() *storage.Repos {
	return &storage.Repos{
		Entries: entryRepo{s},
		Reviews: reviewRepo{s},
		Users:   userRepo{s},
	}
}

// WithTx serialises units of work and restores the previous state when fn
// fails.
func (s *Store) WithTx(ctx context.Context, fn func(r *storage.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.hit("BeginTx"); err != nil {
		return err
	}

	s.mu.Lock()
	snapE, snapR, snapP := cloneMap(s.entries), cloneMap(s.reviews), cloneMap(s.profiles)
	s.mu.Unlock()

	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.entries, s.reviews, s.profiles = snapE, snapR, snapP
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// hit records a call and returns the injected failure, if any. Callers
// must not hold mu.
func (s *Store) hit(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls[method]++
	return s.Fail[method]
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// PutEntry stores e as-is, assigning an id when empty. Test helper.
func (s *Store) PutEntry(e entries.Entry) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.tick()
		e.UpdatedAt = e.CreatedAt
	}
	s.entries[e.ID] = e
	return e.ID
}

// PutProfile stores p as-is. Test helper.
func (s *Store) PutProfile(p users.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func copyEntry(e entries.Entry) entries.Entry {
	e.PaymentMethods = append([]string{}, e.PaymentMethods...)
	return e
}

type entryRepo struct{ s *Store }

func (r entryRepo) Create(_ context.Context, e *entries.Entry) error {
	if err := r.s.hit("Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.entries {
		if e.Slug != "" && other.Slug == e.Slug {
			return entries.ErrSlugTaken
		}
	}
	e.ID = uuid.NewString()
	e.RatingAvg, e.RatingCount = 0, 0
	e.CreatedAt = r.s.tick()
	e.UpdatedAt = e.CreatedAt
	if e.PaymentMethods == nil {
		e.PaymentMethods = []string{}
	}
	r.s.entries[e.ID] = copyEntry(*e)
	return nil
}

func (r entryRepo) GetByID(_ context.Context, id string) (*entries.Entry, error) {
	if err := r.s.hit("GetByID"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.entries[id]
	if !ok {
		return nil, entries.ErrNotFound
	}
	out := copyEntry(e)
	return &out, nil
}

func (r entryRepo) GetBySlug(_ context.Context, slug string) (*entries.Entry, error) {
	if err := r.s.hit("GetBySlug"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.entries {
		if e.Slug == slug {
			out := copyEntry(e)
			return &out, nil
		}
	}
	return nil, entries.ErrNotFound
}

func matches(e entries.Entry, f entries.Filter, now time.Time) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		desc := ""
		if e.Description != nil {
			desc = *e.Description
		}
		hay := strings.ToLower(e.Name + "\x00" + e.Bonus + "\x00" + desc)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.License != "" && e.License != f.License {
		return false
	}
	if f.Country != "" && (e.Country == nil || *e.Country != f.Country) {
		return false
	}
	if f.MinRating > 0 && e.RatingAvg < f.MinRating {
		return false
	}
	if f.PromoOnly && !e.PromoValid(now) {
		return false
	}
	if f.Verified != nil && e.Verified != *f.Verified {
		return false
	}
	return true
}

// sortListing mirrors the SQL ordering: featured, editorial rating with
// nulls last, rating average, name.
func sortListing(list []entries.Entry) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsFeatured != b.IsFeatured {
			return a.IsFeatured
		}
		switch {
		case a.EditorialRating != nil && b.EditorialRating == nil:
			return true
		case a.EditorialRating == nil && b.EditorialRating != nil:
			return false
		case a.EditorialRating != nil && *a.EditorialRating != *b.EditorialRating:
			return *a.EditorialRating > *b.EditorialRating
		}
		if a.RatingAvg != b.RatingAvg {
			return a.RatingAvg > b.RatingAvg
		}
		return a.Name < b.Name
	})
}

func (r entryRepo) List(_ context.Context, f entries.Filter) ([]entries.Entry, int, error) {
	if err := r.s.hit("List"); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	out := []entries.Entry{}
	for _, e := range r.s.entries {
		if matches(e, f, now) {
			out = append(out, copyEntry(e))
		}
	}
	sortListing(out)

	total := len(out)
	if f.Limit > 0 {
		lo := min(f.Offset, total)
		hi := min(lo+f.Limit, total)
		out = out[lo:hi]
	}
	return out, total, nil
}

func (r entryRepo) ListAll(_ context.Context) ([]entries.Entry, error) {
	if err := r.s.hit("ListAll"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []entries.Entry{}
	for _, e := range r.s.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r entryRepo) ListSisterSites(_ context.Context, parentID string) ([]entries.Entry, error) {
	if err := r.s.hit("ListSisterSites"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []entries.Entry{}
	for _, e := range r.s.entries {
		if e.SisterSiteOf != nil && *e.SisterSiteOf == parentID {
			out = append(out, copyEntry(e))
		}
	}
	sortListing(out)
	return out, nil
}

func (r entryRepo) Facets(_ context.Context) (*entries.Facets, error) {
	if err := r.s.hit("Facets"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lic, ctry := map[string]bool{}, map[string]bool{}
	for _, e := range r.s.entries {
		if e.License != "" {
			lic[e.License] = true
		}
		if e.Country != nil && *e.Country != "" {
			ctry[*e.Country] = true
		}
	}
	return &entries.Facets{Licenses: sortedKeys(lic), Countries: sortedKeys(ctry)}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r entryRepo) Update(_ context.Context, id string, p entries.Patch) error {
	if err := r.s.hit("Update"); err != nil {
		return err
	}
	if p.Empty() {
		return entries.ErrNoChanges
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.entries[id]
	if !ok {
		return entries.ErrNotFound
	}
	if p.Slug != nil {
		for oid, other := range r.s.entries {
			if oid != id && other.Slug == *p.Slug {
				return entries.ErrSlugTaken
			}
		}
		e.Slug = *p.Slug
	}
	assign(&e.Name, p.Name)
	if p.Type != nil {
		e.Type = *p.Type
	}
	assign(&e.LogoURL, p.LogoURL)
	assign(&e.Bonus, p.Bonus)
	assign(&e.License, p.License)
	if p.PaymentMethods != nil {
		e.PaymentMethods = append([]string{}, (*p.PaymentMethods)...)
	}
	p.ApplyNullable(&e)
	assign(&e.Verified, p.Verified)
	assign(&e.IsFeatured, p.IsFeatured)
	e.UpdatedAt = r.s.tick()

	r.s.entries[id] = e
	return nil
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (r entryRepo) Delete(_ context.Context, id string) error {
	if err := r.s.hit("Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.entries[id]; !ok {
		return entries.ErrNotFound
	}
	delete(r.s.entries, id)
	return nil
}

func (r entryRepo) ClearSisterReferences(_ context.Context, id string) (int64, error) {
	if err := r.s.hit("ClearSisterReferences"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, e := range r.s.entries {
		if e.SisterSiteOf != nil && *e.SisterSiteOf == id {
			e.SisterSiteOf = nil
			r.s.entries[k] = e
			n++
		}
	}
	return n, nil
}

func (r entryRepo) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	if err := r.s.hit("SlugExists"); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, e := range r.s.entries {
		if e.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r entryRepo) ListMissingSlug(_ context.Context) ([]entries.SlugStub, error) {
	if err := r.s.hit("ListMissingSlug"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var list []entries.Entry
	for _, e := range r.s.entries {
		if e.Slug == "" {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	out := make([]entries.SlugStub, 0, len(list))
	for _, e := range list {
		out = append(out, entries.SlugStub{ID: e.ID, Name: e.Name})
	}
	return out, nil
}

func (r entryRepo) SetSlug(ctx context.Context, id, slug string) error {
	return r.Update(ctx, id, entries.Patch{Slug: &slug})
}

func (r entryRepo) LockForUpdate(_ context.Context, id string) error {
	if err := r.s.hit("LockForUpdate"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.entries[id]; !ok {
		return entries.ErrNotFound
	}
	return nil
}

func (r entryRepo) WriteAggregate(_ context.Context, id string, agg rating.Aggregate) error {
	if err := r.s.hit("WriteAggregate"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.entries[id]
	if !ok {
		return entries.ErrNotFound
	}
	e.RatingAvg, e.RatingCount = agg.Avg, agg.Count
	r.s.entries[id] = e
	return nil
}

func (r entryRepo) Count(_ context.Context) (int, error) {
	if err := r.s.hit("CountEntries"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.entries), nil
}

type reviewRepo struct{ s *Store }

func (r reviewRepo) Create(_ context.Context, rv *reviews.Review) error {
	if err := r.s.hit("CreateReview"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.entries[rv.EntryID]; !ok {
		// mirrors the casino_id foreign key
		return entries.ErrNotFound
	}
	rv.ID = uuid.NewString()
	rv.CreatedAt = r.s.tick()
	r.s.reviews[rv.ID] = *rv
	return nil
}

func (r reviewRepo) GetByID(_ context.Context, id string) (*reviews.Review, error) {
	if err := r.s.hit("GetReview"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rv, ok := r.s.reviews[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	return &rv, nil
}

func (r reviewRepo) sorted(keep func(reviews.Review) bool) []reviews.Review {
	out := []reviews.Review{}
	for _, rv := range r.s.reviews {
		if keep(rv) {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r reviewRepo) ListByEntry(_ context.Context, entryID string) ([]reviews.Review, error) {
	if err := r.s.hit("ListReviews"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(rv reviews.Review) bool { return rv.EntryID == entryID }), nil
}

func (r reviewRepo) ListAll(_ context.Context) ([]reviews.Review, error) {
	if err := r.s.hit("ListAllReviews"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(func(reviews.Review) bool { return true }), nil
}

func (r reviewRepo) Delete(_ context.Context, id string) error {
	if err := r.s.hit("DeleteReview"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.reviews[id]; !ok {
		return reviews.ErrNotFound
	}
	delete(r.s.reviews, id)
	return nil
}

func (r reviewRepo) DeleteByEntry(_ context.Context, entryID string) (int64, error) {
	if err := r.s.hit("DeleteByEntry"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, rv := range r.s.reviews {
		if rv.EntryID == entryID {
			delete(r.s.reviews, id)
			n++
		}
	}
	return n, nil
}

func (r reviewRepo) Ratings(_ context.Context, entryID string) ([]int, error) {
	if err := r.s.hit("Ratings"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []int
	for _, rv := range r.s.reviews {
		if rv.EntryID == entryID {
			out = append(out, rv.Rating)
		}
	}
	return out, nil
}

func (r reviewRepo) Count(_ context.Context) (int, error) {
	if err := r.s.hit("CountReviews"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.reviews), nil
}

type userRepo struct{ s *Store }

func (r userRepo) EnsureProfile(_ context.Context, id, email string) (*users.Profile, error) {
	if err := r.s.hit("EnsureProfile"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		p = users.Profile{ID: id, CreatedAt: r.s.tick()}
	}
	if email != "" || !ok {
		p.Email = strings.ToLower(email)
	}
	r.s.profiles[id] = p
	return &p, nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*users.Profile, error) {
	if err := r.s.hit("GetProfile"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &p, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*users.Profile, error) {
	if err := r.s.hit("GetProfileByEmail"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.s.profiles {
		if strings.ToLower(p.Email) == email {
			return &p, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r userRepo) SetAdminByEmail(_ context.Context, email string, admin bool) error {
	if err := r.s.hit("SetAdminByEmail"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for id, p := range r.s.profiles {
		if strings.ToLower(p.Email) == email {
			p.IsAdmin = admin
			r.s.profiles[id] = p
			return nil
		}
	}
	return users.ErrNotFound
}

func (r userRepo) Count(_ context.Context) (int, error) {
	if err := r.s.hit("CountProfiles"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.profiles), nil
}
