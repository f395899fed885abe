package entries

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("entry not found")
	ErrSlugTaken = errors.New("slug already taken")
	ErrNoChanges = errors.New("no fields to update")
)

// Type classifies an entry and drives which detail sections apply.
type Type string

const (
	TypeCasino     Type = "casino"
	TypeSisterSite Type = "sister-site"
	TypeBlog       Type = "blog"
	TypeReviewSite Type = "review-site"
)

var Types = []Type{TypeCasino, TypeSisterSite, TypeBlog, TypeReviewSite}

// ParseType accepts only the canonical kinds. The legacy "proxy" value is
// migrated to review-site in the database and refused here.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entry type %q", s)
}

// Linked reports whether the kind sends visitors to an external site.
func (t Type) Linked() bool {
	return t == TypeBlog || t == TypeReviewSite
}

// Optional groups the nullable marketing fields. A nil pointer means the
// column is NULL; Verified and IsFeatured default to false.
type Optional struct {
	Title              *string    `json:"title"`
	MetaDescription    *string    `json:"meta_description"`
	PromoCode          *string    `json:"promo_code"`
	PromoCodeExpiresAt *time.Time `json:"promo_code_expires_at"`
	EditorialRating    *float64   `json:"editorial_rating"`
	SisterSiteOf       *string    `json:"sister_site_of"`
	ExternalURL        *string    `json:"external_url"`
	Verified           bool       `json:"verified"`
	IsFeatured         bool       `json:"is_featured"`
}

type Entry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Type           Type      `json:"entry_type"`
	LogoURL        string    `json:"logo_url"`
	Bonus          string    `json:"bonus"`
	License        string    `json:"license"`
	Description    *string   `json:"description"`
	Country        *string   `json:"country"`
	PaymentMethods []string  `json:"payment_methods"`
	RatingAvg      float64   `json:"rating_avg"`
	RatingCount    int       `json:"rating_count"`
	Optional
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PromoValid reports whether the entry carries a promo code that is still
// usable at now.
func (e *Entry) PromoValid(now time.Time) bool {
	if e.PromoCode == nil || *e.PromoCode == "" {
		return false
	}
	return PromoWindowValid(e.PromoCodeExpiresAt, now)
}

// PromoWindowValid is the expiry rule alone: no expiry, or one strictly
// after now.
func PromoWindowValid(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || expiresAt.After(now)
}

// DisplayTitle falls back to the name when no SEO title is set.
func (e *Entry) DisplayTitle() string {
	if e.Title != nil && *e.Title != "" {
		return *e.Title
	}
	return e.Name
}

// Filter narrows List. Zero values mean "no filter".
type Filter struct {
	Query     string
	Type      Type
	License   string
	Country   string
	MinRating float64
	PromoOnly bool
	Verified  *bool
	Limit     int
	Offset    int
}

// Patch is a partial update. Nil fields are left untouched; a Nullable
// field sent as null clears its column. The rating aggregate is not
// patchable.
type Patch struct {
	Name               *string             `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Slug               *string             `json:"slug,omitempty" validate:"omitempty,max=200"`
	Type               *Type               `json:"entry_type,omitempty" validate:"omitempty,entrykind"`
	LogoURL            *string             `json:"logo_url,omitempty" validate:"omitempty,max=1000"`
	Bonus              *string             `json:"bonus,omitempty" validate:"omitempty,max=500"`
	License            *string             `json:"license,omitempty" validate:"omitempty,max=200"`
	Description        Nullable[string]    `json:"description"`
	Country            Nullable[string]    `json:"country" validate:"omitempty,max=100"`
	PaymentMethods     *[]string           `json:"payment_methods,omitempty"`
	Title              Nullable[string]    `json:"title" validate:"omitempty,max=200"`
	MetaDescription    Nullable[string]    `json:"meta_description" validate:"omitempty,max=500"`
	PromoCode          Nullable[string]    `json:"promo_code" validate:"omitempty,max=100"`
	PromoCodeExpiresAt Nullable[time.Time] `json:"promo_code_expires_at"`
	EditorialRating    Nullable[float64]   `json:"editorial_rating" validate:"omitempty,gte=0,lte=5"`
	SisterSiteOf       Nullable[string]    `json:"sister_site_of" validate:"omitempty,uuid|len=0"`
	ExternalURL        Nullable[string]    `json:"external_url" validate:"omitempty,url|len=0"`
	Verified           *bool               `json:"verified,omitempty"`
	IsFeatured         *bool               `json:"is_featured,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Slug == nil && p.Type == nil && p.LogoURL == nil &&
		p.Bonus == nil && p.License == nil && !p.Description.Set && !p.Country.Set &&
		p.PaymentMethods == nil && !p.Title.Set && !p.MetaDescription.Set &&
		!p.PromoCode.Set && !p.PromoCodeExpiresAt.Set && !p.EditorialRating.Set &&
		!p.SisterSiteOf.Set && !p.ExternalURL.Set && p.Verified == nil && p.IsFeatured == nil
}

// ApplyNullable copies the Nullable fields of p onto e. An empty
// SisterSiteOf detaches the entry like a null one.
func (p Patch) ApplyNullable(e *Entry) {
	p.Description.apply(&e.Description)
	p.Country.apply(&e.Country)
	p.Title.apply(&e.Title)
	p.MetaDescription.apply(&e.MetaDescription)
	p.PromoCode.apply(&e.PromoCode)
	p.PromoCodeExpiresAt.apply(&e.PromoCodeExpiresAt)
	p.EditorialRating.apply(&e.EditorialRating)
	p.SisterSiteOf.apply(&e.SisterSiteOf)
	if e.SisterSiteOf != nil && *e.SisterSiteOf == "" {
		e.SisterSiteOf = nil
	}
	p.ExternalURL.apply(&e.ExternalURL)
}

// Facets are the distinct filter values offered on the listing page.
type Facets struct {
	Licenses  []string `json:"licenses"`
	Countries []string `json:"countries"`
}

// SlugStub is a row that still needs a slug.
type SlugStub struct {
	ID   string
	Name string
}
