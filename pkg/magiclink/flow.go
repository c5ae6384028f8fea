package magiclink

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/cache"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/email/templates"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// Accounts is the part of account.Manager the flow needs.
type Accounts interface {
	GetOrCreateAccount(ctx context.Context, provider storage.Provider, token *oauth2.Token, profile storage.OAuth2Profile) (*storage.UserAccount, error)
	GenerateSession(ctx context.Context, provider storage.Provider, user storage.UserAccount) (*storage.Session, error)
}

// LoginHook runs after a session has been issued for a redeemed code.
type LoginHook func(ctx context.Context, session *storage.Session)

type pending struct {
	email string
	ip    string
}

// Flow issues and redeems one-time email login codes.
type Flow struct {
	cfg      Config
	accounts Accounts
	sender   email.EmailSender
	ipRL     ratelimiter.RateLimiter
	emailRL  ratelimiter.RateLimiter
	codes    *cache.LRUCache[string, pending]

	random  io.Reader
	now     func() time.Time
	onLogin LoginHook
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Flow.
type Option func(*Flow)

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(f *Flow) {
		if r != nil {
			f.metrics = r
		}
	}
}

// WithOnLogin registers a hook called after every successful redemption.
func WithOnLogin(h LoginHook) Option {
	return func(f *Flow) {
		f.onLogin = h
	}
}

// WithRandom replaces the code source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(f *Flow) {
		if r != nil {
			f.random = r
		}
	}
}

// WithClock sets the clock used to expire codes.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// New creates a Flow. ipLimiter and emailLimiter must both admit a request
// before a code is issued.
func New(cfg Config, accounts Accounts, sender email.EmailSender, ipLimiter, emailLimiter ratelimiter.RateLimiter, opts ...Option) (*Flow, error) {
	switch {
	case accounts == nil, sender == nil, ipLimiter == nil, emailLimiter == nil:
		return nil, fmt.Errorf("%w: accounts, sender and both limiters are required", ErrInvalidConfig)
	case cfg.CodeBytes < 8:
		return nil, fmt.Errorf("%w: code must be at least 8 bytes, got %d", ErrInvalidConfig, cfg.CodeBytes)
	case cfg.CacheCapacity < 1:
		return nil, fmt.Errorf("%w: cache capacity must be positive", ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", ErrInvalidConfig, cfg.BaseURL)
	}

	f := &Flow{
		cfg:      cfg,
		accounts: accounts,
		sender:   sender,
		ipRL:     ipLimiter,
		emailRL:  emailLimiter,
		random:   rand.Reader,
		log:      logger.Discard(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(f)
	}

	cacheOpts := []cache.Option[string, pending]{cache.WithTTL[string, pending](cfg.CodeTTL)}
	if f.now != nil {
		cacheOpts = append(cacheOpts, cache.WithClock[string, pending](f.now))
	}
	f.codes = cache.NewLRUCache[string, pending](cfg.CacheCapacity, cacheOpts...)
	return f, nil
}

// Request mails a one-time login link to addr. Both limiters are consulted
// before any state is created. A code stays redeemable even if delivery
// fails.
func (f *Flow) Request(ctx context.Context, addr, ip string) error {
	addr = normalizeEmail(addr)
	// The address becomes the account email and link subject, so it must
	// fit the stored width as well as be well formed.
	if email.ValidateAddress(addr) != nil || len(addr) > storage.MaxFieldLen {
		f.metrics.RecordMagicLink(metrics.OutcomeInvalidEmail)
		return ErrInvalidEmail
	}

	for _, check := range []struct {
		rl  ratelimiter.RateLimiter
		key string
	}{
		{f.ipRL, ip},
		{f.emailRL, addr},
	} {
		res, err := check.rl.Allow(ctx, check.key)
		if err != nil {
			f.log.ErrorContext(ctx, "rate limiter unavailable", logger.Error(err))
			return fmt.Errorf("check rate limit: %w", err)
		}
		if !res.Allowed() {
			f.metrics.RecordMagicLink(metrics.OutcomeRateLimited)
			f.log.InfoContext(ctx, "magic link rate limited", logger.IP(ip), logger.Email(addr))
			return ErrRateLimited
		}
	}

	code, err := f.newCode()
	if err != nil {
		return err
	}
	f.codes.Put(code, pending{email: addr, ip: ip})

	body, err := templates.Render(ctx, templates.MagicLink(templates.MagicLinkData{
		AppName: f.cfg.AppName,
		Link:    f.link(addr, code),
		Code:    code,
		TTL:     f.cfg.CodeTTL,
	}))
	if err != nil {
		return fmt.Errorf("render magic link: %w", err)
	}

	if err := f.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  f.cfg.Subject,
		BodyHTML: body,
		Tag:      "magic-link",
	}); err != nil {
		f.metrics.RecordMagicLink(metrics.OutcomeDeliveryFailed)
		f.log.ErrorContext(ctx, "magic link delivery failed", logger.Email(addr), logger.Error(err))
		return errors.Join(ErrDeliveryFailed, err)
	}

	f.metrics.RecordMagicLink(metrics.OutcomeMailed)
	return nil
}

// Redeem consumes code and signs the user in. The code must have been
// requested for the same email from the same IP. It is removed before the
// account is resolved, so concurrent redemptions yield at most one session;
// a mismatch leaves it in place.
func (f *Flow) Redeem(ctx context.Context, addr, ip, code string) (*storage.Session, error) {
	addr = normalizeEmail(addr)
	if code == "" {
		f.metrics.RecordMagicLink(metrics.OutcomeInvalidCode)
		return nil, ErrInvalidCode
	}

	if _, ok := f.codes.RemoveIf(code, func(p pending) bool {
		return p.email == addr && p.ip == ip
	}); !ok {
		f.metrics.RecordMagicLink(metrics.OutcomeInvalidCode)
		return nil, ErrInvalidCode
	}

	acc, err := f.accounts.GetOrCreateAccount(ctx, storage.ProviderEmail, nil, storage.OAuth2Profile{
		Sub:           addr,
		Email:         addr,
		EmailVerified: true,
	})
	if err != nil {
		return nil, err
	}

	sess, err := f.accounts.GenerateSession(ctx, storage.ProviderEmail, *acc)
	if err != nil {
		return nil, err
	}

	if f.onLogin != nil {
		f.onLogin(ctx, sess)
	}
	f.metrics.RecordMagicLink(metrics.OutcomeRedeemed)
	f.log.InfoContext(ctx, "magic link redeemed", logger.UserID(acc.ID))
	return sess, nil
}

// Pending reports how many codes are waiting for redemption.
func (f *Flow) Pending() int {
	return f.codes.Len()
}

func (f *Flow) newCode() (string, error) {
	b := make([]byte, f.cfg.CodeBytes)
	if _, err := io.ReadFull(f.random, b); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (f *Flow) link(addr, code string) string {
	q := url.Values{}
	q.Set("email", addr)
	q.Set("code", code)

	sep := "?"
	if strings.Contains(f.cfg.BaseURL, "?") {
		sep = "&"
	}
	return f.cfg.BaseURL + sep + q.Encode()
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
