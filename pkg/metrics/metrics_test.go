package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.IncRouteLookup(RouteSourceFallback)
	m.IncRouteLookup(RouteSourceFallback)
	m.IncRouteLookup("")
	m.ObserveMatch("mainland", 250*time.Millisecond, 3)
	m.IncClaim("accepted")
	m.IncEffectFailure("notify_participants")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "dispatch_route_lookups_total", "source", RouteSourceFallback)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "dispatch_route_lookups_total", "source", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "dispatch_claims_total", "outcome", "accepted")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "dispatch_effect_failures_total", "effect", "notify_participants")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	sum, err := fetchHistogramSum(mfs, "dispatch_match_duration_seconds", "policy", "mainland")
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)

	sum, err = fetchHistogramSum(mfs, "dispatch_match_candidates", "policy", "mainland")
	require.NoError(t, err)
	assert.Equal(t, 3.0, sum)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *DispatchMetrics
	m.IncRouteLookup(RouteSourceCache)
	m.ObserveMatch("island", time.Second, 1)
	m.IncClaim("conflict")
	m.IncEffectFailure("x")

	var o *OutboxMetrics
	o.IncPublished("delivery_accepted")
	o.IncFailed("delivery_accepted", true)

	NewDispatchMetrics(nil).IncClaim("accepted")
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("delivery_accepted")
	m.IncFailed("notification_requested", true)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "outbox_events_published_total", "event_type", "delivery_accepted")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "outbox_events_failed_total", "terminal", "true")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	m.SetPending(7)
	mfs, err = reg.Gather()
	require.NoError(t, err)
	pending := findMetricFamily(mfs, "outbox_events_pending")
	require.NotNil(t, pending)
	assert.Equal(t, 7.0, pending.GetMetric()[0].GetGauge().GetValue())
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestHTTPMetricsObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.ObserveRequest("/api/v1/deliveries/{jobId}/accept", "POST", 409, 30*time.Millisecond)
	m.ObserveRequest("", "GET", 404, time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "http_requests_total", "status", "409")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "http_requests_total", "route", "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	var nilMetrics *HTTPMetrics
	nilMetrics.ObserveRequest("/x", "GET", 200, time.Second)
}
