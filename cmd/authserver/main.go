// Command authserver runs the authentication service: magic-link and OAuth
// logins, cookie sessions, metrics and health probes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/authkit/pkg/account"
	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/magiclink"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/session"
	"github.com/dmitrymomot/authkit/pkg/token"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(
		logger.FromConfig(cfg.Log),
		logger.WithContextExtractors(requestid.LogRequestID, session.LogUserID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("authserver stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	codec, err := token.NewCodecFromConfig(cfg.Token)
	if err != nil {
		return fmt.Errorf("session signing: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	infra, err := openInfra(ctx, cfg, codec, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	accounts := account.NewManager(infra.backend,
		account.WithLogger(log.With(logger.Component("account"))),
		account.WithMetrics(rec),
	)

	sessions, err := session.New(cfg.Session, codec, accounts,
		session.WithTransport(session.NewCompositeTransport(
			session.NewCookieTransport(cfg.Session),
			session.NewHeaderTransport(),
		)),
		session.WithLogger(log.With(logger.Component("session"))),
		session.WithMetrics(rec),
	)
	if err != nil {
		return err
	}

	limiters := make(map[string]*ratelimiter.Limiter, 3)
	for name, lc := range map[string]ratelimiter.Config{
		"ip":    cfg.MagicLink.IPLimit,
		"email": cfg.MagicLink.EmailLimit,
		"http":  cfg.httpLimit(),
	} {
		l, err := ratelimiter.New(infra.limiterStore(name), lc)
		if err != nil {
			return fmt.Errorf("%s limiter: %w", name, err)
		}
		limiters[name] = l
	}

	transports, err := email.TransportsFromConfig(cfg.Email)
	if err != nil {
		return err
	}
	sender, err := email.NewFailoverSender(transports,
		email.WithHalfLife(cfg.Email.FailoverHalfLife),
		email.WithFailoverLogger(log.With(logger.Component("email"))),
		email.WithFailoverMetrics(rec),
	)
	if err != nil {
		return err
	}

	magic, err := magiclink.New(cfg.MagicLink, accounts, sender, limiters["ip"], limiters["email"],
		magiclink.WithLogger(log.With(logger.Component("magiclink"))),
		magiclink.WithMetrics(rec),
	)
	if err != nil {
		return err
	}

	oauthSvc, err := oauth.NewService(cfg.OAuth, accounts, oauth.AdaptersFromConfig(cfg.OAuth),
		oauth.WithLogger(log.With(logger.Component("oauth"))),
	)
	if err != nil {
		return err
	}
	if len(oauthSvc.Providers()) == 0 {
		log.WarnContext(ctx, "no oauth providers configured, only email login is available")
	}

	ipResolver, err := clientip.New(cfg.ClientIP)
	if err != nil {
		return err
	}

	handler := newRouter(routerDeps{
		log:         log,
		clientIP:    ipResolver,
		sessions:    sessions,
		accounts:    accounts,
		magic:       magic,
		oauth:       oauthSvc,
		httpLimiter: limiters["http"],
		gatherer:    reg,
		checks:      infra.checks,
		healthTTL:   cfg.HealthTimeout,
	})

	if infra.sweeper != nil && cfg.SweepInterval > 0 {
		go sweepSessions(ctx, infra.sweeper, cfg.SweepInterval, log.With(logger.Component("sweeper")))
	}

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	if err := srv.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
