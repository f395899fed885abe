package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"casinodir/internal/directory"
)

// Maintenance routes answer with their own envelope: {success, message}
// on success, {success: false, error} on failure.

func writeMaintenanceError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	return writeJSON(w, status, &envelope{Success: false, Error: message})
}

type SeedResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Summary directory.SeedSummary  `json:"summary"`
	Results []directory.SeedResult `json:"results"`
}

// seedHandler godoc
//
//	@Summary		Seed demo entries
//	@Description	Inserts the demo catalogue, skipping entries that already exist
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	SeedResponse
//	@Failure		401	{object}	error
//	@Router			/maintenance/seed [post]
func (app *application) seedHandler(w http.ResponseWriter, r *http.Request) {
	results, err := app.dir.Seed(r.Context())
	if err != nil {
		app.logger.Errorw("seed failed", "error", err)
		writeMaintenanceError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sum := directory.Summarize(results)
	writeJSON(w, http.StatusOK, SeedResponse{
		Success: true,
		Message: fmt.Sprintf("Seeding completed: %d added, %d skipped, %d errors", sum.Added, sum.Skipped, sum.Failed),
		Summary: sum,
		Results: results,
	})
}

type makeAdminPayload struct {
	Email string `json:"email" validate:"required,email"`
}

// makeAdminHandler godoc
//
//	@Summary		Grant admin
//	@Description	Sets the admin flag for a user who has already signed in
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		makeAdminPayload	true	"User email"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Router			/maintenance/make-admin [post]
func (app *application) makeAdminHandler(w http.ResponseWriter, r *http.Request) {
	var payload makeAdminPayload
	if err := readJSON(w, r, &payload); err != nil {
		writeMaintenanceError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	if err := Validate.Struct(payload); err != nil {
		writeMaintenanceError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	if err := app.dir.PromoteAdmin(r.Context(), payload.Email); err != nil {
		app.maintenanceServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("User %s is now an admin", payload.Email),
	})
}

// adminStatusHandler godoc
//
//	@Summary	Admin status
//	@Tags		maintenance
//	@Produce	json
//	@Param		email	query		string	true	"User email"
//	@Success	200		{object}	users.AdminStatus
//	@Failure	404		{object}	error
//	@Router		/maintenance/make-admin [get]
func (app *application) adminStatusHandler(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeMaintenanceError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	st, err := app.dir.AdminStatus(r.Context(), email)
	if err != nil {
		app.maintenanceServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"email":    st.Email,
		"is_admin": st.IsAdmin,
	})
}

// backfillSlugsHandler godoc
//
//	@Summary		Backfill slugs
//	@Description	Gives every entry without a slug a unique one derived from its name
//	@Tags			maintenance
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		401	{object}	error
//	@Router			/maintenance/backfill-slugs [post]
func (app *application) backfillSlugsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.dir.BackfillSlugs(r.Context())
	if err != nil {
		app.logger.Errorw("slug backfill failed", "error", err)
		writeMaintenanceError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Migration completed. Updated %d casinos with slugs.", n),
		"updated": n,
	})
}

func (app *application) maintenanceServiceError(w http.ResponseWriter, err error) {
	var verr *directory.ValidationError
	switch {
	case errors.As(err, &verr):
		writeMaintenanceError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrUserNotFound):
		writeMaintenanceError(w, http.StatusNotFound, "User not found. They need to sign up first.")
	default:
		app.logger.Errorw("maintenance request failed", "error", err)
		writeMaintenanceError(w, http.StatusInternalServerError, "internal error")
	}
}
