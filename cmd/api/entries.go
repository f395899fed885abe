package main

import (
	"errors"
	"net/http"

	"casinodir/internal/directory"
	"casinodir/internal/domain/entries"
	"casinodir/internal/params"

	"github.com/go-chi/chi/v5"
)

type EntryListResponse struct {
	Entries    []directory.EntryView `json:"entries"`
	Pagination params.Pagination     `json:"pagination"`
}

// parseEntryFilter reads the listing query string. Unknown entry types are
// a client error; other malformed values are ignored.
func parseEntryFilter(r *http.Request) (entries.Filter, params.Pagination, error) {
	q := r.URL.Query()
	p := params.ParsePagination(q)

	f := entries.Filter{
		Query:   params.String(q, "q"),
		License: params.String(q, "license"),
		Country: params.String(q, "country"),
		Limit:   p.Limit,
		Offset:  p.Offset,
	}

	if raw := params.String(q, "type"); raw != "" && raw != "all" {
		t, err := entries.ParseType(raw)
		if err != nil {
			return f, p, err
		}
		f.Type = t
	}
	if v, ok := params.Float(q, "min_rating"); ok {
		if v < 0 || v > 5 {
			return f, p, errors.New("min_rating must be between 0 and 5")
		}
		f.MinRating = v
	}
	if v, ok := params.Bool(q, "promo_only"); ok {
		f.PromoOnly = v
	}
	if v, ok := params.Bool(q, "verified"); ok {
		f.Verified = &v
	}
	return f, p, nil
}

// listEntriesHandler godoc
//
//	@Summary		List entries
//	@Description	Featured first, then editorial rating, then user rating average
//	@Tags			entries
//	@Produce		json
//	@Param			q			query		string	false	"Search in name, bonus and description"
//	@Param			type		query		string	false	"casino|sister-site|blog|review-site"
//	@Param			license		query		string	false	"Exact licence"
//	@Param			country		query		string	false	"Exact country"
//	@Param			min_rating	query		number	false	"Minimum user rating average"
//	@Param			promo_only	query		bool	false	"Only entries with a valid promo code"
//	@Param			verified	query		bool	false	"Verified flag"
//	@Param			page		query		int		false	"Page number"		default(1)
//	@Param			limit		query		int		false	"Items per page"	default(20)
//	@Success		200			{object}	EntryListResponse
//	@Failure		400			{object}	error
//	@Router			/entries [get]
func (app *application) listEntriesHandler(w http.ResponseWriter, r *http.Request) {
	f, p, err := parseEntryFilter(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, total, err := app.dir.Search(r.Context(), f)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, EntryListResponse{Entries: list, Pagination: p})
}

// entryFacetsHandler godoc
//
//	@Summary	Filter values
//	@Tags		entries
//	@Produce	json
//	@Success	200	{object}	entries.Facets
//	@Router		/entries/facets [get]
func (app *application) entryFacetsHandler(w http.ResponseWriter, r *http.Request) {
	f, err := app.dir.Facets(r.Context())
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, f)
}

// getEntryHandler godoc
//
//	@Summary		Entry detail
//	@Description	Resolves a slug, falling back to the entry id for old links
//	@Tags			entries
//	@Produce		json
//	@Param			entry	path		string	true	"Entry slug or id"
//	@Success		200		{object}	directory.Detail
//	@Failure		404		{object}	error
//	@Router			/entries/{entry} [get]
func (app *application) getEntryHandler(w http.ResponseWriter, r *http.Request) {
	d, err := app.dir.EntryDetail(r.Context(), chi.URLParam(r, "entry"))
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, d)
}
