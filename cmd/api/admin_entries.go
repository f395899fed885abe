package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"casinodir/internal/directory"
	"casinodir/internal/domain/entries"

	"github.com/go-chi/chi/v5"
)

const maxLogoSize = 2 << 20 // 2 MB

var allowedLogoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// adminDashboardHandler godoc
//
//	@Summary		Admin dashboard
//	@Description	All entries and all reviews, loaded concurrently under a deadline
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	directory.Dashboard
//	@Failure		403	{object}	error
//	@Failure		504	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/dashboard [get]
func (app *application) adminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, err := app.dir.Dashboard(r.Context())
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, d)
}

// createEntryHandler godoc
//
//	@Summary		Create an entry
//	@Description	The slug is derived from the name unless given, and made unique with a numeric suffix
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		directory.EntryInput	true	"Entry"
//	@Success		201		{object}	entries.Entry
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/entries [post]
func (app *application) createEntryHandler(w http.ResponseWriter, r *http.Request) {
	var payload directory.EntryInput
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	e, err := app.dir.CreateEntry(r.Context(), payload)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusCreated, e)
}

// updateEntryHandler godoc
//
//	@Summary		Update an entry
//	@Description	Only the fields present are changed. Renaming keeps the slug; send "slug" to change it ("" regenerates it from the name)
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			entryID	path		string			true	"Entry id"
//	@Param			payload	body		entries.Patch	true	"Fields to change"
//	@Success		200		{object}	entries.Entry
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/entries/{entryID} [patch]
func (app *application) updateEntryHandler(w http.ResponseWriter, r *http.Request) {
	var payload entries.Patch
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	e, err := app.dir.UpdateEntry(r.Context(), chi.URLParam(r, "entryID"), payload)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, e)
}

// deleteEntryHandler godoc
//
//	@Summary		Delete an entry
//	@Description	Removes the entry, its reviews and sister-site links to it
//	@Tags			admin
//	@Produce		json
//	@Param			entryID	path		string	true	"Entry id"
//	@Success		200		{object}	entries.Entry
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/entries/{entryID} [delete]
func (app *application) deleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	e, err := app.dir.DeleteEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		app.serviceError(w, r, err)
		return
	}

	if app.media != nil && e.LogoURL != "" {
		// the row is gone either way; a leftover asset is only logged
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.media.Delete(ctx, e.LogoURL); err != nil {
			app.logger.Warnw("logo cleanup failed", "entry_id", e.ID, "logo_url", e.LogoURL, "error", err)
		}
	}

	app.jsonResponse(w, http.StatusOK, e)
}

// uploadLogoHandler godoc
//
//	@Summary		Upload a logo
//	@Description	Stores the image on Cloudinary and records its URL on the entry
//	@Tags			admin
//	@Accept			mpfd
//	@Produce		json
//	@Param			entryID	path		string	true	"Entry id"
//	@Param			logo	formData	file	true	"JPEG, PNG or WebP, at most 2MB"
//	@Success		200		{object}	entries.Entry
//	@Failure		400		{object}	error
//	@Failure		503		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/entries/{entryID}/logo [post]
func (app *application) uploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	if app.media == nil {
		app.serviceUnavailableResponse(w, r, "logo storage is not configured")
		return
	}

	entryID := chi.URLParam(r, "entryID")

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoSize+1024)
	if err := r.ParseMultipartForm(maxLogoSize); err != nil {
		app.badRequestResponse(w, r, errors.New("unable to parse form, file size limit is 2MB"))
		return
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("unable to retrieve file"))
		return
	}
	defer file.Close()

	if !allowedLogoTypes[header.Header.Get("Content-Type")] {
		app.badRequestResponse(w, r, errors.New("only JPEG, PNG and WebP images are allowed"))
		return
	}

	// make sure the entry exists before paying for the upload
	if _, err := app.dir.EntryDetail(r.Context(), entryID); err != nil {
		app.serviceError(w, r, err)
		return
	}

	url, err := app.media.UploadLogo(r.Context(), file, entryID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	e, err := app.dir.SetLogo(r.Context(), entryID, url)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, e)
}

// recomputeEntryHandler godoc
//
//	@Summary		Recompute rating aggregate
//	@Description	Rebuilds rating_avg and rating_count from the stored reviews
//	@Tags			admin
//	@Produce		json
//	@Param			entryID	path		string	true	"Entry id"
//	@Success		200		{object}	rating.Aggregate
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/entries/{entryID}/recompute [post]
func (app *application) recomputeEntryHandler(w http.ResponseWriter, r *http.Request) {
	agg, err := app.dir.RecomputeEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, agg)
}
