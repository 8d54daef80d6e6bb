package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry       *prometheus.Registry
	claimsCreated  *prometheus.CounterVec
	claimsRedeemed *prometheus.CounterVec
	claimLookups   *prometheus.CounterVec
	sweepsTotal    *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimrails_claims_created_total",
		Help: "Total number of claim creation requests",
	}, []string{"status"})

	redeemed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimrails_claims_redeemed_total",
		Help: "Total number of claim redemption requests",
	}, []string{"status"})

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimrails_claim_lookups_total",
		Help: "Total number of claim info lookups",
	}, []string{"status"})

	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claimrails_sweeps_total",
		Help: "Owner-only stuck-token sweeps",
	}, []string{"status"})

	r := prometheus.NewRegistry()
	r.MustRegister(created, redeemed, lookups, sweeps)

	return &metricsRegistry{
		registry:       r,
		claimsCreated:  created,
		claimsRedeemed: redeemed,
		claimLookups:   lookups,
		sweepsTotal:    sweeps,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incCreated(status string) {
	m.claimsCreated.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incRedeemed(status string) {
	m.claimsRedeemed.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incLookup(status string) {
	m.claimLookups.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incSweep(status string) {
	m.sweepsTotal.WithLabelValues(status).Inc()
}
