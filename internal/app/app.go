// Package app wires the cart service together and runs it.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nearandnow/cart-service/internal/backend"
	"github.com/nearandnow/cart-service/internal/domain/checkout"
	"github.com/nearandnow/cart-service/internal/handler"
	"github.com/nearandnow/cart-service/internal/session"
	"github.com/nearandnow/cart-service/internal/storage/postgres"
	"github.com/nearandnow/cart-service/pkg/health"
	"github.com/nearandnow/cart-service/pkg/httpmiddleware"
)

const serviceName = "cart-service"

// Run creates all dependencies, serves HTTP and shuts down gracefully once
// ctx is cancelled.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.BackendURL),
		zap.Bool("journal", cfg.DatabaseURL != ""),
	)

	client, err := backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithTracerProvider(m.TracerProvider()),
		backend.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	hs := health.New()
	hs.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	hs.AddReadinessCheck("backend", 5*time.Second, health.PingCheck("backend", client),
		health.WithFailureThreshold(3),
	)

	var (
		journal checkout.Journal = checkout.NopJournal{}
		history checkout.History = checkout.NopJournal{}
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		j := postgres.NewJournal(pool)
		journal, history = j, j
		hs.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", j))
	}

	svc, err := checkout.NewService(client, journal,
		checkout.WithTracerProvider(m.TracerProvider()),
		checkout.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	pepper := []byte(cfg.SessionPepper)
	sessions := session.NewRegistry(cfg.Session.IdleTTL)
	h, err := handler.New(handler.Deps{
		Sessions:  sessions,
		Checkout:  svc,
		History:   history,
		Catalog:   client,
		Coupons:   client,
		Orders:    client,
		Locations: client,
	}, pepper, handler.WithMeterProvider(m.MeterProvider()))
	if err != nil {
		return errors.Wrap(err, "create handler")
	}
	limiter := httpmiddleware.NewLimiter(cfg.RateLimit, handler.SessionKeyFunc(pepper))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.BackendTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(routes(hs, h, limiter),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.CORS(cfg.CORS),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	hs.Start(gCtx, 10*time.Second)

	g.Go(func() error {
		return sessions.Run(gCtx, cfg.Session.SweepInterval)
	})
	g.Go(func() error {
		return limiter.Run(gCtx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		hs.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		hs.Stop()
		lg.Info("Stopped", zap.Int("carts", sessions.Len()))
		return nil
	})

	hs.SetReady(true)
	return g.Wait()
}

// routes builds the root router: health probes outside the rate limit, the
// API under /api.
func routes(hs *health.Health, h *handler.Handler, limiter *httpmiddleware.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Recovery())

	r.Get("/livez", hs.LiveEndpoint)
	r.Get("/readyz", hs.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware())
		r.Mount("/api", h.Routes())
	})
	return r
}
