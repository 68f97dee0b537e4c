// Command server runs the AnimAI Studio HTTP API: prompt-to-animation
// generation with a prompt cache, the public gallery, chat history and
// billing.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/cache"
	"github.com/tbourn/animai-studio/internal/config"
	httpapi "github.com/tbourn/animai-studio/internal/http"
	"github.com/tbourn/animai-studio/internal/observability"
	"github.com/tbourn/animai-studio/internal/payment"
	"github.com/tbourn/animai-studio/internal/repo"
	"github.com/tbourn/animai-studio/internal/sysutil"
	"github.com/tbourn/animai-studio/internal/workflow"
)

// Version is injected at build time.
var Version = "dev"

const (
	minShutdownGrace = 30 * time.Second
	// shutdownSlack covers the work a cache hit does after its delay.
	shutdownSlack = 10 * time.Second
	purgeEvery    = 15 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	sysutil.InitLogger(sysutil.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	db, err := repo.Open(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	deps := httpapi.Deps{DB: db, Invoker: workflow.New(cfg.Generation)}

	var store cache.Store = cache.NewSQLStore(db)
	if cfg.Cache.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = cache.NewRedisFront(store, rdb, cfg.Cache.RedisTTL)
		log.Info().Dur("ttl", cfg.Cache.RedisTTL).Msg("redis cache front enabled")
	}
	deps.Cache = store

	if cfg.Billing.StripeSecretKey != "" {
		gw, err := payment.NewStripeGateway(cfg.Billing.StripeSecretKey)
		if err != nil {
			return err
		}
		deps.Payments = gw
	} else {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; checkout disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", Version).
			Str("db_driver", cfg.DBDriver).
			Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		purgeLoop(gctx, db, purgeEvery, time.Now)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace(cfg.Cache))
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// shutdownGrace is how long in-flight requests get to finish on shutdown. A
// cache hit is held for HitDelay, so the grace always outlasts it.
func shutdownGrace(c config.CacheConfig) time.Duration {
	return max(minShutdownGrace, c.HitDelay+shutdownSlack)
}

// purgeLoop deletes expired idempotency records every interval until ctx is
// done.
func purgeLoop(ctx context.Context, db *gorm.DB, every time.Duration, now func() time.Time) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now())
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("purge idempotency records")
				}
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("expired idempotency records removed")
			}
		}
	}
}
