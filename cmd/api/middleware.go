package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"casinodir/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.Auth.Basic.User
			pass := app.config.Auth.Basic.Pass

			// unset credentials lock the operational routes
			creds := strings.SplitN(string(decoded), ":", 2)
			if username == "" || len(creds) != 2 || creds[0] != username || creds[1] != pass {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("authorization header is malformed")
	}
	return parts[1], nil
}

// AuthTokenMiddleware verifies the bearer token and loads the caller's
// profile, creating it on first sight.
func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		claims, err := app.authenticator.ValidateAccessToken(token)
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		ctx := r.Context()

		user, err := app.users.EnsureProfile(ctx, claims.Subject, claims.Email)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, userCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getUserFromContext(r)
		if user == nil || !user.IsAdmin {
			writeJSONError(w, http.StatusForbidden, "Insufficient privileges")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiterMiddleware limits per user when authenticated, per client IP
// otherwise.
func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.RateLimiter.Enabled || app.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := "ip:" + clientIP(r)
		if user := getUserFromContext(r); user != nil {
			key = "user:" + user.ID
		}

		if allow, retryAfter := app.rateLimiter.Allow(key); !allow {
			app.rateLimitExceededResponse(w, r, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is RemoteAddr without the port. middleware.RealIP may already
// have replaced it with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MaintenanceTokenMiddleware guards the one-off maintenance routes with a
// static bearer token from the configuration.
func (app *application) MaintenanceTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := app.config.Maintenance.Token
		if expected == "" {
			app.logger.Errorw("maintenance route called without a configured token", "path", r.URL.Path)
			writeMaintenanceError(w, http.StatusInternalServerError, "Server configuration error: maintenance token is not set.")
			return
		}

		token, err := bearerToken(r)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			app.logger.Warnw("maintenance token rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeMaintenanceError(w, http.StatusUnauthorized, "Unauthorized. Provide a valid authorization token.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *application) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
