package main

import (
	"net/http"

	"casinodir/internal/directory"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/rating"

	"github.com/go-chi/chi/v5"
)

type ReviewResponse struct {
	Review    *reviews.Review  `json:"review"`
	Aggregate rating.Aggregate `json:"aggregate"`
}

// listReviewsHandler godoc
//
//	@Summary	Reviews of an entry
//	@Tags		reviews
//	@Produce	json
//	@Param		entry	path		string	true	"Entry slug or id"
//	@Success	200		{array}		reviews.Review
//	@Failure	404		{object}	error
//	@Router		/entries/{entry}/reviews [get]
func (app *application) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.dir.Reviews(r.Context(), chi.URLParam(r, "entry"))
	if err != nil {
		app.serviceError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, list)
}

// createReviewHandler godoc
//
//	@Summary		Submit a review
//	@Description	Stores the review and refreshes the entry's rating aggregate atomically
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			entry	path		string					true	"Entry slug or id"
//	@Param			payload	body		directory.ReviewInput	true	"Review"
//	@Success		201		{object}	ReviewResponse
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		429		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/entries/{entry}/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload directory.ReviewInput
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rv, agg, err := app.dir.SubmitReview(r.Context(), user.ID, chi.URLParam(r, "entry"), payload)
	if err != nil {
		app.serviceError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, ReviewResponse{Review: rv, Aggregate: agg})
}

// deleteReviewHandler godoc
//
//	@Summary		Delete a review
//	@Description	Authors may delete their own reviews, administrators any review
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		string	true	"Review id"
//	@Success		200			{object}	rating.Aggregate
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	agg, err := app.dir.DeleteReview(r.Context(), directory.Actor{ID: user.ID, IsAdmin: user.IsAdmin}, chi.URLParam(r, "reviewID"))
	if err != nil {
		app.serviceError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, agg)
}
