package main

import (
	"net/http"

	"casinodir/internal/domain/users"
)

type userKey string

const userCtx userKey = "user"

func getUserFromContext(r *http.Request) *users.Profile {
	if user, ok := r.Context().Value(userCtx).(*users.Profile); ok {
		return user
	}
	return nil
}

// getCurrentUserHandler godoc
//
//	@Summary		Current user
//	@Description	Returns the profile of the authenticated user, including the admin flag
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	users.Profile
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/me [get]
func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	app.jsonResponse(w, http.StatusOK, user)
}
