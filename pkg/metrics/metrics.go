// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the authentication packages report to.
type Recorder interface {
	RecordMailAttempt(transport string, ok bool)
	RecordMagicLink(outcome string)
	RecordSessionLookup(source string)
	RecordSessionIssued(provider string)
}

// Magic-link outcomes.
const (
	OutcomeMailed         = "mailed"
	OutcomeInvalidEmail   = "invalid_email"
	OutcomeRateLimited    = "rate_limited"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeRedeemed       = "redeemed"
	OutcomeInvalidCode    = "invalid_code"
)

// Session lookup sources.
const (
	LookupCache   = "cache"
	LookupBackend = "backend"
	LookupMiss    = "miss"
	LookupError   = "error"
)

// Collector records metrics into a Prometheus registry.
type Collector struct {
	mailAttempts   *prometheus.CounterVec
	magicLinks     *prometheus.CounterVec
	sessionLookups *prometheus.CounterVec
	sessionsIssued *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mailAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_mail_attempts_total",
			Help: "Outbound mail attempts by transport and result.",
		}, []string{"transport", "result"}),
		magicLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_magic_link_total",
			Help: "Magic-link requests and redemptions by outcome.",
		}, []string{"outcome"}),
		sessionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_session_lookups_total",
			Help: "Session resolutions by source.",
		}, []string{"source"}),
		sessionsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authkit_sessions_issued_total",
			Help: "Sessions created by identity provider.",
		}, []string{"provider"}),
	}

	reg.MustRegister(c.mailAttempts, c.magicLinks, c.sessionLookups, c.sessionsIssued)
	return c
}

func (c *Collector) RecordMailAttempt(transport string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.mailAttempts.WithLabelValues(transport, result).Inc()
}

func (c *Collector) RecordMagicLink(outcome string) {
	c.magicLinks.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSessionLookup(source string) {
	c.sessionLookups.WithLabelValues(source).Inc()
}

func (c *Collector) RecordSessionIssued(provider string) {
	c.sessionsIssued.WithLabelValues(provider).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every observation. Services use it when no collector is configured.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordMailAttempt(string, bool) {}
func (Nop) RecordMagicLink(string)         {}
func (Nop) RecordSessionLookup(string)     {}
func (Nop) RecordSessionIssued(string)     {}
