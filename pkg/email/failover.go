package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/metrics"
)

// DefaultFailoverHalfLife is how long it takes a transport penalty to halve.
const DefaultFailoverHalfLife = time.Hour

// Transport is a named EmailSender taking part in failover.
type Transport struct {
	Name   string
	Sender EmailSender
}

// FailoverSender delivers through an ordered list of transports. Each failure
// adds one to the failing transport's penalty, every penalty decays with
// the configured half-life, and transports are tried in ascending penalty
// order. Ties keep their previous relative order.
type FailoverSender struct {
	mu        sync.Mutex
	order     []int
	penalties []float64
	lastEval  time.Time

	transports []Transport
	halfLife   time.Duration
	now        func() time.Time
	log        *slog.Logger
	metrics    metrics.Recorder
}

var _ EmailSender = (*FailoverSender)(nil)

// FailoverOption configures a FailoverSender.
type FailoverOption func(*FailoverSender)

// WithHalfLife sets the penalty half-life. Non-positive values are ignored.
func WithHalfLife(d time.Duration) FailoverOption {
	return func(f *FailoverSender) {
		if d > 0 {
			f.halfLife = d
		}
	}
}

// WithFailoverClock overrides time.Now, mainly for tests.
func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *FailoverSender) {
		if now != nil {
			f.now = now
		}
	}
}

func WithFailoverLogger(l *slog.Logger) FailoverOption {
	return func(f *FailoverSender) {
		if l != nil {
			f.log = l
		}
	}
}

func WithFailoverMetrics(r metrics.Recorder) FailoverOption {
	return func(f *FailoverSender) {
		if r != nil {
			f.metrics = r
		}
	}
}

// NewFailoverSender creates a dispatcher over transports in their initial order.
func NewFailoverSender(transports []Transport, opts ...FailoverOption) (*FailoverSender, error) {
	if len(transports) == 0 {
		return nil, fmt.Errorf("%w: at least one transport is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(transports))
	for _, t := range transports {
		if t.Name == "" || t.Sender == nil {
			return nil, fmt.Errorf("%w: transport needs a name and a sender", ErrInvalidConfig)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate transport %q", ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = struct{}{}
	}

	f := &FailoverSender{
		transports: append([]Transport(nil), transports...),
		penalties:  make([]float64, len(transports)),
		order:      make([]int, len(transports)),
		halfLife:   DefaultFailoverHalfLife,
		now:        time.Now,
		log:        logger.Discard(),
		metrics:    metrics.Nop{},
	}
	for i := range f.order {
		f.order[i] = i
	}
	for _, opt := range opts {
		opt(f)
	}
	f.lastEval = f.now()
	return f, nil
}

// SendEmail validates params and tries each transport in the current order
// until one succeeds. When all of them fail the result wraps
// ErrAllTransportsFailed together with every transport error.
func (f *FailoverSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	errs := []error{ErrAllTransportsFailed}
	for _, idx := range f.snapshot() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		t := f.transports[idx]
		err := t.Sender.SendEmail(ctx, params)
		f.metrics.RecordMailAttempt(t.Name, err == nil)
		if err == nil {
			return nil
		}

		f.log.WarnContext(ctx, "mail transport failed",
			logger.Transport(t.Name),
			logger.Error(err),
		)
		f.penalize(idx)
		errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
	}

	f.log.ErrorContext(ctx, "all mail transports failed", logger.Email(params.SendTo))
	return errors.Join(errs...)
}

// Order returns the transport names in the order the next send will try them.
func (f *FailoverSender) Order() []string {
	idx := f.snapshot()
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = f.transports[j].Name
	}
	return names
}

// Penalties returns the current decayed penalty per transport name.
func (f *FailoverSender) Penalties() map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	factor := f.decayFactor(f.now())
	out := make(map[string]float64, len(f.transports))
	for i, t := range f.transports {
		out[t.Name] = f.penalties[i] * factor
	}
	return out
}

func (f *FailoverSender) snapshot() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}

// penalize decays all penalties up to now, charges idx and re-sorts.
func (f *FailoverSender) penalize(idx int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	factor := f.decayFactor(now)
	for i := range f.penalties {
		f.penalties[i] *= factor
	}
	f.lastEval = now
	f.penalties[idx]++

	sort.SliceStable(f.order, func(a, b int) bool {
		return f.penalties[f.order[a]] < f.penalties[f.order[b]]
	})
}

// decayFactor must be called with mu held.
func (f *FailoverSender) decayFactor(now time.Time) float64 {
	elapsed := now.Sub(f.lastEval)
	if elapsed <= 0 {
		return 1
	}
	return math.Exp2(-float64(elapsed) / float64(f.halfLife))
}
