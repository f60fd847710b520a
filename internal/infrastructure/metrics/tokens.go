// Package metrics exposes token lifecycle counters to Prometheus.
package metrics

import (
	"github.com/go-token-nosql/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Tokens counts issuance, reuse, redemption and rejection per purpose, plus
// failed deliveries per channel.
type Tokens struct {
	issued         *prometheus.CounterVec
	reused         *prometheus.CounterVec
	redeemed       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	dispatchFailed *prometheus.CounterVec
}

// NewTokens registers the counters on reg.
func NewTokens(reg prometheus.Registerer) *Tokens {
	m := &Tokens{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokens",
			Name:      "issued_total",
			Help:      "Tokens minted, by purpose.",
		}, []string{"purpose"}),
		reused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokens",
			Name:      "reused_total",
			Help:      "Resends that returned a still-live token, by purpose.",
		}, []string{"purpose"}),
		redeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokens",
			Name:      "redeemed_total",
			Help:      "Successful redemptions, by purpose.",
		}, []string{"purpose"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokens",
			Name:      "rejected_total",
			Help:      "Failed redemption attempts, by purpose and reason.",
		}, []string{"purpose", "reason"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokens",
			Name:      "dispatch_failed_total",
			Help:      "Messages the notifier failed to deliver, by channel.",
		}, []string{"channel"}),
	}
	reg.MustRegister(m.issued, m.reused, m.redeemed, m.rejected, m.dispatchFailed)
	return m
}

func (m *Tokens) Issued(p domain.Purpose)   { m.issued.WithLabelValues(string(p)).Inc() }
func (m *Tokens) Reused(p domain.Purpose)   { m.reused.WithLabelValues(string(p)).Inc() }
func (m *Tokens) Redeemed(p domain.Purpose) { m.redeemed.WithLabelValues(string(p)).Inc() }

func (m *Tokens) Rejected(p domain.Purpose, reason string) {
	m.rejected.WithLabelValues(string(p), reason).Inc()
}

func (m *Tokens) DispatchFailed(ch domain.Channel) {
	m.dispatchFailed.WithLabelValues(string(ch)).Inc()
}
