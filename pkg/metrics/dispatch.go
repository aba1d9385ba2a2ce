package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Routing lookup sources.
const (
	RouteSourceCache    = "cache"
	RouteSourceProvider = "provider"
	RouteSourceFallback = "fallback"
)

// DispatchMetrics records matching, routing and claim activity.
// A nil *DispatchMetrics is a valid no-op recorder.
type DispatchMetrics struct {
	routeLookups    *prometheus.CounterVec
	matchDuration   *prometheus.HistogramVec
	matchCandidates *prometheus.HistogramVec
	claims          *prometheus.CounterVec
	effectFailures  *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	routeLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_route_lookups_total",
		Help: "Distance lookups by the source that answered them.",
	}, []string{"source"})
	matchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_match_duration_seconds",
		Help:    "Duration of courier matching requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"policy"})
	matchCandidates := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_match_candidates",
		Help:    "Number of couriers admitted per matching request.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	}, []string{"policy"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_claims_total",
		Help: "Delivery job accept attempts by outcome.",
	}, []string{"outcome"})
	effectFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_effect_failures_total",
		Help: "Post-commit side effects that failed after retries.",
	}, []string{"effect"})
	reg.MustRegister(routeLookups, matchDuration, matchCandidates, claims, effectFailures)
	return &DispatchMetrics{
		routeLookups:    routeLookups,
		matchDuration:   matchDuration,
		matchCandidates: matchCandidates,
		claims:          claims,
		effectFailures:  effectFailures,
	}
}

// IncRouteLookup counts a distance answered by source.
func (m *DispatchMetrics) IncRouteLookup(source string) {
	if m == nil || m.routeLookups == nil {
		return
	}
	m.routeLookups.WithLabelValues(normalizeLabel(source)).Inc()
}

// ObserveMatch records a completed matching request.
func (m *DispatchMetrics) ObserveMatch(policy string, duration time.Duration, admitted int) {
	if m == nil || m.matchDuration == nil {
		return
	}
	label := normalizeLabel(policy)
	m.matchDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.matchCandidates.WithLabelValues(label).Observe(float64(admitted))
}

// IncClaim counts an accept attempt by outcome.
func (m *DispatchMetrics) IncClaim(outcome string) {
	if m == nil || m.claims == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEffectFailure counts a side effect that gave up.
func (m *DispatchMetrics) IncEffectFailure(effect string) {
	if m == nil || m.effectFailures == nil {
		return
	}
	m.effectFailures.WithLabelValues(normalizeLabel(effect)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
