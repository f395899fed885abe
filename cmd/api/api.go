package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casinodir/docs"
	"casinodir/internal/auth"
	"casinodir/internal/config"
	"casinodir/internal/directory"
	"casinodir/internal/domain/users"
	"casinodir/internal/media"
	"casinodir/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config.Config
	logger        *zap.SugaredLogger
	dir           *directory.Service
	users         users.Store
	media         media.Store
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.MetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// handlers observe ctx.Done() once the deadline passes
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.HTTP.Addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.Group(func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
			r.Handle("/metrics", promhttp.Handler())
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", app.listEntriesHandler)
			r.Get("/facets", app.entryFacetsHandler)
			r.Route("/{entry}", func(r chi.Router) {
				r.Get("/", app.getEntryHandler)
				r.Get("/reviews", app.listReviewsHandler)
				r.With(app.AuthTokenMiddleware, app.RateLimiterMiddleware).Post("/reviews", app.createReviewHandler)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/me", app.getCurrentUserHandler)
			r.Delete("/reviews/{reviewID}", app.deleteReviewHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RequireAdmin)

			r.Get("/dashboard", app.adminDashboardHandler)
			r.Post("/entries", app.createEntryHandler)
			r.Route("/entries/{entryID}", func(r chi.Router) {
				r.Patch("/", app.updateEntryHandler)
				r.Delete("/", app.deleteEntryHandler)
				r.Post("/logo", app.uploadLogoHandler)
				r.Post("/recompute", app.recomputeEntryHandler)
			})
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Use(app.MaintenanceTokenMiddleware)
			r.Post("/seed", app.seedHandler)
			r.Post("/make-admin", app.makeAdminHandler)
			r.Get("/make-admin", app.adminStatusHandler)
			r.Post("/backfill-slugs", app.backfillSlugsHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.HTTP.ExternalURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.HTTP.Addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.HTTP.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.HTTP.Addr, "env", app.config.Env)

	return nil
}
