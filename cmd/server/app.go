package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	accountapi "github.com/dmitrymomot/codeai/modules/account"
	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/googleid"
	"github.com/dmitrymomot/codeai/pkg/hasher"
	"github.com/dmitrymomot/codeai/pkg/httpserver"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	"github.com/dmitrymomot/codeai/pkg/logger"
	"github.com/dmitrymomot/codeai/pkg/metrics"
	"github.com/dmitrymomot/codeai/pkg/mongo"
	"github.com/dmitrymomot/codeai/pkg/notify"
	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
	"github.com/dmitrymomot/codeai/pkg/redis"
	"github.com/dmitrymomot/codeai/svc/account"
	"github.com/dmitrymomot/codeai/svc/account/memstore"
	"github.com/dmitrymomot/codeai/svc/account/mongostore"
)

// app owns every long-lived dependency of the process.
type app struct {
	cfg     appConfig
	log     *slog.Logger
	metrics *metrics.Metrics

	mongo      *mongodriver.Client
	redis      *goredis.Client
	limitStore interface{ Close() error }
	dispatcher *notify.Dispatcher
	server     *httpserver.Server
	handler    http.Handler
}

func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.close(context.WithoutCancel(ctx))
		}
	}()

	storage, checks, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	limiter, redisCheck, err := a.openLimiter(ctx)
	if err != nil {
		return nil, err
	}
	if redisCheck != nil {
		checks = append(checks, *redisCheck)
	}

	sender, err := email.NewSender(cfg.Email, log)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	a.dispatcher, err = notify.New(sender, cfg.Notify,
		notify.WithLogger(log),
		notify.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("notification dispatcher: %w", err)
	}

	passwords := hasher.NewFromConfig(cfg.Hasher)
	if passwords.Cost() < hasher.DefaultCost {
		log.Warn("bcrypt cost below default, use only for tests",
			slog.Int("cost", passwords.Cost()),
			slog.Int("default", hasher.DefaultCost),
		)
	}

	sessions, err := jwt.New(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}

	verifier, err := googleid.NewVerifier(cfg.Google,
		googleid.WithLogger(log),
		googleid.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("google verifier: %w", err)
	}

	opts := []account.Option{
		account.WithLogger(log),
		account.WithMetrics(a.metrics),
	}
	if exchanger := googleid.NewCodeExchanger(cfg.Google, verifier); exchanger.Enabled() {
		opts = append(opts, account.WithCodeExchanger(exchanger))
	}

	svc := account.NewService(
		storage,
		passwords,
		sessions,
		verifier,
		a.dispatcher,
		cfg.Account,
		opts...,
	)

	a.handler = a.routes(svc, limiter, checks)
	a.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return a, nil
}

func (a *app) openStorage(ctx context.Context) (account.Storage, []httpserver.Check, error) {
	if a.cfg.StoreDriver == storeMemory {
		a.log.Warn("using in-memory account store, data is lost on restart")
		return memstore.New(), nil, nil
	}

	client, db, err := mongo.NewWithDatabase(ctx, a.cfg.Mongo)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	a.mongo = client

	store := mongostore.New(db)
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, nil, fmt.Errorf("mongodb indexes: %w", err)
	}
	return store, []httpserver.Check{{Name: "mongodb", Fn: mongo.Healthcheck(client)}}, nil
}

// openLimiter shares buckets through Redis when REDIS_URL is set and keeps
// them in memory otherwise.
func (a *app) openLimiter(ctx context.Context) (ratelimiter.RateLimiter, *httpserver.Check, error) {
	var (
		store ratelimiter.Store
		check *httpserver.Check
	)

	if a.cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		store = ratelimiter.NewRedisStore(client)
		check = &httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)}
	} else {
		mem := ratelimiter.NewMemoryStore()
		a.limitStore = mem
		store = mem
	}

	limiter, err := ratelimiter.NewBucket(store, a.cfg.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}
	return limiter, check, nil
}

func (a *app) routes(svc *account.Service, limiter ratelimiter.RateLimiter, checks []httpserver.Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.metrics.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, checks...))
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(a.cfg.HTTP.RequestTimeout))
		r.Mount("/", accountapi.Router(svc,
			accountapi.WithLogger(a.log),
			accountapi.WithMetrics(a.metrics),
			accountapi.WithRateLimiter(limiter),
		))
	})
	return r
}

// run serves until ctx is cancelled or either the HTTP server or the
// notification dispatcher fails. Both drain within the shutdown timeout, then
// the store clients are closed.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.dispatcher.Run(gctx, a.cfg.HTTP.ShutdownTimeout))
	g.Go(func() error {
		return a.server.Run(gctx, a.handler)
	})
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.close(shutdownCtx))
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
	}
	if a.limitStore != nil {
		_ = a.limitStore.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect mongodb: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		a.log.ErrorContext(ctx, "shutdown incomplete", logger.Error(err))
		return err
	}
	return nil
}
