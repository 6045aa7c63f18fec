// main.go - billing service bootstrap.
//
// Stripe, Redis, email and object storage are optional at startup; each
// missing one disables only the operations that need it.
package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yayoedit-hub/dump2-57cbd353/internal/auth"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/config"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/email"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/lock"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/ratelimit"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/shutdown"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/storage"
	"github.com/yayoedit-hub/dump2-57cbd353/internal/store"
	stripeclient "github.com/yayoedit-hub/dump2-57cbd353/internal/stripe"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/logging"
	"github.com/yayoedit-hub/dump2-57cbd353/pkg/telemetry"
)

// StartBillingService loads configuration, wires dependencies and serves
// until SIGTERM/SIGINT.
func StartBillingService() {
	log := logging.NewLogger("billing")
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := telemetry.InitSentry(cfg.SentryDSN, "billing", cfg.Release, cfg.Env, log); err != nil {
		log.WithError(err).Warn("sentry init failed")
	}
	defer telemetry.Flush()

	srv, closeFn, err := Bootstrap(context.Background(), cfg, log)
	if err != nil {
		log.WithError(err).Fatal("billing startup failed")
	}
	defer closeFn()

	var stops []func(context.Context)
	if cfg.ReconcileSchedule != "" && srv.stripe != nil {
		c, err := srv.StartScheduler(cfg.ReconcileSchedule)
		if err != nil {
			log.WithError(err).Fatal("invalid RECONCILE_SCHEDULE")
		}
		stops = append(stops, func(ctx context.Context) {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
		})
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := shutdown.GracefulServe(httpSrv, 30*time.Second, log, stops...); err != nil {
		log.WithError(err).Fatal("billing service failed")
	}
}

// Bootstrap opens the store, runs migrations and builds a Server from cfg.
// The returned func releases the store and Redis connections.
func Bootstrap(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Server, func(), error) {
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = st.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if err := st.Migrate(); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithField("driver", cfg.DatabaseDriver).Info("database ready")

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	deps := Deps{Store: st, Verifier: verifier, Log: log}

	if cfg.BillingEnabled() {
		sc, err := stripeclient.New(cfg.StripeSecretKey, log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		deps.Stripe = sc
	} else {
		log.Warn("STRIPE_SECRET_KEY not set: pricing, checkout, cancellation and reconciliation return 503")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set: every webhook will be rejected")
	}

	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rc := goredis.NewClient(opts)
		closers = append(closers, func() { _ = rc.Close() })
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rc.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		deps.Limiter = ratelimit.New(ratelimit.NewRedisStore(rc))
		deps.Locks = lock.NewRedis(rc, 30*time.Second)
		log.Info("redis rate limiting and locks enabled")
	} else {
		deps.Limiter = ratelimit.New(ratelimit.NewMemoryStore())
		deps.Locks = lock.NewLocal()
	}

	if cfg.ResendAPIKey != "" {
		mc, err := email.New(cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		deps.Mailer = mc
	} else {
		log.Warn("RESEND_API_KEY not set: payout notifications will fail with delivery_failed")
	}

	if cfg.StorageEnabled() {
		sc, err := storage.New(ctx, storage.Config{
			Endpoint:  cfg.StorageEndpoint,
			Region:    cfg.StorageRegion,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		deps.Signer = sc
	} else {
		log.Warn("object storage not configured: downloads return 503")
	}

	srv := NewServer(deps, Options{
		BaseURL:            cfg.BaseURL,
		WebhookSecret:      cfg.StripeWebhookSecret,
		SignatureHeader:    cfg.StripeSignatureHeader,
		PlatformFeeBps:     cfg.PlatformFeeBps,
		MinimumPayoutCents: cfg.MinimumPayoutCents,
		DownloadBucket:     cfg.DownloadBucket,
		DownloadURLTTL:     cfg.DownloadURLTTL,
		CronKey:            cfg.CronKey,
	})
	return srv, closeAll, nil
}
