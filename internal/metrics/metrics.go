// Package metrics exposes prometheus instrumentation for the workspace core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the workspace collectors. A nil *Metrics is a no-op.
type Metrics struct {
	payloads       *prometheus.CounterVec
	historySeeded  prometheus.Counter
	historyFailed  prometheus.Counter
	historyEntries prometheus.Histogram
	tabsOpen       prometheus.Gauge
	viewsMounted   prometheus.Gauge
}

const (
	resultAccepted = "accepted"
	resultRejected = "rejected"
)

// New registers the workspace collectors on reg. A nil registerer yields
// unregistered collectors, which is what tests usually want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "termdeck",
			Name:      "live_payloads_total",
			Help:      "Live output payloads tested against a pane's known set, by result.",
		}, []string{"result"}),
		historySeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termdeck",
			Name:      "history_seeded_total",
			Help:      "Pane output views seeded from history.",
		}),
		historyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "termdeck",
			Name:      "history_load_failures_total",
			Help:      "History loads abandoned after retries or timeout.",
		}),
		historyEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "termdeck",
			Name:      "history_known_payloads",
			Help:      "Known payloads per seeded pane.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		tabsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termdeck",
			Name:      "tabs_open",
			Help:      "Open tabs in the workspace.",
		}),
		viewsMounted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "termdeck",
			Name:      "output_views_mounted",
			Help:      "Mounted pane output views.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.payloads, m.historySeeded, m.historyFailed, m.historyEntries, m.tabsOpen, m.viewsMounted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObservePayload records the outcome of a live payload test.
func (m *Metrics) ObservePayload(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.payloads.WithLabelValues(resultAccepted).Inc()
		return
	}
	m.payloads.WithLabelValues(resultRejected).Inc()
}

// ObserveHistorySeeded records a seeded view and its known set size.
func (m *Metrics) ObserveHistorySeeded(known int) {
	if m == nil {
		return
	}
	m.historySeeded.Inc()
	m.historyEntries.Observe(float64(known))
}

// ObserveHistoryFailed records an abandoned history load.
func (m *Metrics) ObserveHistoryFailed() {
	if m == nil {
		return
	}
	m.historyFailed.Inc()
}

// SetTabsOpen sets the open tab gauge.
func (m *Metrics) SetTabsOpen(n int) {
	if m == nil {
		return
	}
	m.tabsOpen.Set(float64(n))
}

// ViewMounted adjusts the mounted view gauge by delta.
func (m *Metrics) ViewMounted(delta int) {
	if m == nil {
		return
	}
	m.viewsMounted.Add(float64(delta))
}
