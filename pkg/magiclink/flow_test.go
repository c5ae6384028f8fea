package magiclink_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/account"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/magiclink"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/storage"
	"github.com/dmitrymomot/authkit/pkg/storage/memstore"
	"github.com/dmitrymomot/authkit/pkg/token"
)

var codeRe = regexp.MustCompile(`code=([0-9a-f]+)`)

// outbox records every message and optionally fails delivery.
type outbox struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	fail error
}

func (o *outbox) SendEmail(_ context.Context, p email.SendEmailParams) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, p)
	return o.fail
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	m := codeRe.FindStringSubmatch(o.sent[len(o.sent)-1].BodyHTML)
	require.Len(t, m, 2, "mail body carries a code")
	return m[1]
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

type fixture struct {
	flow    *magiclink.Flow
	outbox  *outbox
	backend *memstore.Store
	now     time.Time
	mu      sync.Mutex
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newFixture(t *testing.T, cfg magiclink.Config, opts ...magiclink.Option) *fixture {
	t.Helper()

	fx := &fixture{
		outbox:  &outbox{},
		backend: memstore.New(token.MustNewCodec("magiclink-test-secret")),
		now:     time.Unix(1_700_000_000, 0),
	}

	newLimiter := func(c ratelimiter.Config) *ratelimiter.Limiter {
		store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(fx.clock))
		t.Cleanup(store.Close)
		rl, err := ratelimiter.New(store, c)
		require.NoError(t, err)
		return rl
	}

	opts = append([]magiclink.Option{magiclink.WithClock(fx.clock)}, opts...)
	flow, err := magiclink.New(cfg, account.NewManager(fx.backend), fx.outbox,
		newLimiter(cfg.IPLimit), newLimiter(cfg.EmailLimit), opts...)
	require.NoError(t, err)
	fx.flow = flow
	return fx
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := magiclink.DefaultConfig()
	cfg.CodeBytes = 4
	_, err := magiclink.New(cfg, account.NewManager(memstore.New(token.MustNewCodec("s"))), &outbox{},
		&stubLimiter{}, &stubLimiter{})
	assert.ErrorIs(t, err, magiclink.ErrInvalidConfig)

	_, err = magiclink.New(magiclink.DefaultConfig(), nil, &outbox{}, &stubLimiter{}, &stubLimiter{})
	assert.ErrorIs(t, err, magiclink.ErrInvalidConfig)
}

func TestRequestAndRedeem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var hooked atomic.Int64
	fx := newFixture(t, magiclink.DefaultConfig(), magiclink.WithOnLogin(func(_ context.Context, s *storage.Session) {
		hooked.Store(s.User.ID)
	}))

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	require.Equal(t, 1, fx.outbox.count())
	assert.Equal(t, "a@b.com", fx.outbox.sent[0].SendTo)
	assert.Equal(t, "magic-link", fx.outbox.sent[0].Tag)

	code := fx.outbox.lastCode(t)
	body := fx.outbox.sent[0].BodyHTML
	assert.Contains(t, body, "Or use this code:")
	assert.Contains(t, body, ">"+code+"</p>", "code is printed for manual entry")

	sess, err := fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", code)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", sess.User.Email)
	assert.True(t, sess.User.EmailVerified)
	assert.Equal(t, sess.User.ID, hooked.Load())

	stored, err := fx.backend.QuerySessionData(ctx, sess.ID, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, stored.User.ID)

	_, err = fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", code)
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode)
	assert.EqualError(t, err, "invalid or expired code")
}

func TestRedeem_SameAccountOnSecondLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, magiclink.DefaultConfig())

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	first, err := fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", fx.outbox.lastCode(t))
	require.NoError(t, err)

	require.NoError(t, fx.flow.Request(ctx, "A@B.com ", "1.2.3.4"))
	second, err := fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", fx.outbox.lastCode(t))
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRedeem_Mismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, magiclink.DefaultConfig())

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	code := fx.outbox.lastCode(t)

	_, err := fx.flow.Redeem(ctx, "a@b.com", "5.6.7.8", code)
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode, "different ip")

	_, err = fx.flow.Redeem(ctx, "c@d.com", "1.2.3.4", code)
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode, "different email")

	_, err = fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", "")
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode, "no code")

	_, err = fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", "deadbeef")
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode, "unknown code")

	assert.Equal(t, 1, fx.flow.Pending(), "mismatches leave the code in place")

	_, err = fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", code)
	assert.NoError(t, err)
	assert.Zero(t, fx.flow.Pending())
}

func TestRedeem_CodeExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := magiclink.DefaultConfig()
	cfg.CodeTTL = 15 * time.Minute
	fx := newFixture(t, cfg)

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	code := fx.outbox.lastCode(t)

	fx.advance(16 * time.Minute)
	_, err := fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", code)
	assert.ErrorIs(t, err, magiclink.ErrInvalidCode)
}

func TestRedeem_ConcurrentSingleUse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, magiclink.DefaultConfig())

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	code := fx.outbox.lastCode(t)

	const workers = 20
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", code); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load())
}

func TestRequest_InvalidEmail(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, magiclink.DefaultConfig())
	for _, addr := range []string{"", "nope", "a@", "@b.com"} {
		err := fx.flow.Request(context.Background(), addr, "1.2.3.4")
		assert.ErrorIs(t, err, magiclink.ErrInvalidEmail, addr)
	}
	assert.Zero(t, fx.outbox.count())
	assert.Zero(t, fx.flow.Pending())
}

func TestRequest_AddressWidth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, magiclink.DefaultConfig())

	widest := strings.Repeat("a", storage.MaxFieldLen-len("@exam.com")) + "@exam.com"
	err := fx.flow.Request(ctx, "b"+widest, "1.2.3.4")
	assert.ErrorIs(t, err, magiclink.ErrInvalidEmail)
	assert.Zero(t, fx.flow.Pending())

	require.NoError(t, fx.flow.Request(ctx, widest, "1.2.3.4"))
	sess, err := fx.flow.Redeem(ctx, widest, "1.2.3.4", fx.outbox.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, widest, sess.User.Email)
	assert.LessOrEqual(t, len(sess.User.DisplayName), storage.MaxFieldLen)
}

func TestRequest_EmailRateLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := magiclink.DefaultConfig()
	cfg.IPLimit.Threshold = 1000
	cfg.EmailLimit.Threshold = 3
	fx := newFixture(t, cfg)

	for i := range 3 {
		require.NoError(t, fx.flow.Request(ctx, "a@b.com", fmt.Sprintf("10.0.0.%d", i+1)))
	}
	err := fx.flow.Request(ctx, "a@b.com", "10.0.0.9")
	assert.ErrorIs(t, err, magiclink.ErrRateLimited)
	assert.EqualError(t, err, "rate limit exceeded")
	assert.Equal(t, 3, fx.outbox.count(), "rejected request sends nothing")
	assert.Equal(t, 3, fx.flow.Pending(), "rejected request issues no code")

	require.NoError(t, fx.flow.Request(ctx, "other@b.com", "10.0.0.9"), "other emails unaffected")
}

func TestRequest_IPRateLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := magiclink.DefaultConfig()
	cfg.IPLimit.Threshold = 2
	fx := newFixture(t, cfg)

	require.NoError(t, fx.flow.Request(ctx, "a@b.com", "1.2.3.4"))
	require.NoError(t, fx.flow.Request(ctx, "b@b.com", "1.2.3.4"))
	assert.ErrorIs(t, fx.flow.Request(ctx, "c@b.com", "1.2.3.4"), magiclink.ErrRateLimited)

	// Two half-lives later the counter has decayed enough for one more.
	fx.advance(cfg.IPLimit.HalfLife * 2)
	assert.NoError(t, fx.flow.Request(ctx, "c@b.com", "1.2.3.4"))
}

func TestRequest_DeliveryFailureKeepsCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, magiclink.DefaultConfig())
	fx.outbox.fail = errors.New("smtp down")

	err := fx.flow.Request(ctx, "a@b.com", "1.2.3.4")
	assert.ErrorIs(t, err, magiclink.ErrDeliveryFailed)
	assert.Equal(t, 1, fx.flow.Pending())

	_, err = fx.flow.Redeem(ctx, "a@b.com", "1.2.3.4", fx.outbox.lastCode(t))
	assert.NoError(t, err)
}

func TestRequest_LimiterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("redis down")
	flow, err := magiclink.New(magiclink.DefaultConfig(),
		account.NewManager(memstore.New(token.MustNewCodec("s"))), &outbox{},
		&stubLimiter{err: boom}, &stubLimiter{})
	require.NoError(t, err)

	err = flow.Request(context.Background(), "a@b.com", "1.2.3.4")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, flow.Pending())
}

type stubLimiter struct {
	err error
}

func (s *stubLimiter) Allow(context.Context, string) (*ratelimiter.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ratelimiter.Result{Limit: 1, Count: 0, HalfLife: time.Minute}, nil
}
