package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"casinodir/internal/directory"
	"casinodir/internal/domain/entries"
	"casinodir/internal/domain/reviews"
	"casinodir/internal/slug"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+strconv.Itoa(secs)+"s")
}

func (app *application) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request, message string) {
	app.logger.Warnw("service unavailable", "method", r.Method, "path", r.URL.Path, "reason", message)

	writeJSONError(w, http.StatusServiceUnavailable, message)
}

// serviceError maps errors from the directory service to responses.
func (app *application) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var dirValidation *directory.ValidationError
	var reviewValidation *reviews.ValidationError
	var exhausted *slug.ExhaustedError

	switch {
	case errors.As(err, &dirValidation), errors.As(err, &reviewValidation):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, entries.ErrNotFound), errors.Is(err, reviews.ErrNotFound), errors.Is(err, directory.ErrUserNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, directory.ErrForbidden):
		app.forbiddenResponse(w, r)
	case errors.Is(err, entries.ErrSlugTaken), errors.As(err, &exhausted):
		app.conflictResponse(w, r, err)
	case errors.Is(err, directory.ErrDashboardTimeout), errors.Is(err, context.DeadlineExceeded):
		app.logger.Errorw("request timed out", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
	default:
		app.internalServerError(w, r, err)
	}
}
