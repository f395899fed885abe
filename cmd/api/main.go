package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"

	"casinodir/internal/auth"
	"casinodir/internal/config"
	"casinodir/internal/db"
	"casinodir/internal/directory"
	"casinodir/internal/domain/storage"
	"casinodir/internal/logger"
	"casinodir/internal/media"
	"casinodir/internal/ratelimiter"
)

var version = "1.0.0"

//	@title			Casino Directory API
//	@description	Casinos, sister sites, blogs and review sites with user reviews.

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	cfg, err := config.Load(os.Getenv("DIR_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Auth.Token.Secret == "" {
		logger.Fatal("auth.token.secret is required (DIR_AUTH__TOKEN__SECRET)")
	}

	pool, err := db.New(cfg.DB.Addr, cfg.DB.MaxConns, cfg.DB.MaxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	if cfg.DB.MigrateOnBoot {
		if err := db.Migrate(context.Background(), pool); err != nil {
			logger.Fatal(err)
		}
		logger.Info("migrations applied")
	}

	container := storage.NewContainer(pool)
	svc := directory.NewFromContainer(container, logger, directory.WithDashboardTimeout(cfg.DashboardTimeout))

	// logo uploads answer 503 until cloudinary is configured
	var logos media.Store
	if cfg.Cloudinary.URL != "" {
		cld, err := media.NewCloudinary(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			logger.Fatal(err)
		}
		logos = cld
	} else {
		logger.Warn("cloudinary url not set, logo uploads disabled")
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.RateLimiter.RequestsPerTimeFrame,
		cfg.RateLimiter.TimeFrame,
	)
	defer rateLimiter.Stop()

	app := &application{
		config:        *cfg,
		logger:        logger,
		dir:           svc,
		users:         container.Users,
		media:         logos,
		authenticator: auth.NewJWTAuthenticator(cfg.Auth.Token.Secret, cfg.Auth.Token.Audience, cfg.Auth.Token.Issuer),
		rateLimiter:   rateLimiter,
	}

	// http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		s := pool.Stat()
		return map[string]any{
			"total_conns":    s.TotalConns(),
			"idle_conns":     s.IdleConns(),
			"acquired_conns": s.AcquiredConns(),
			"max_conns":      s.MaxConns(),
		}
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
