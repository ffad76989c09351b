package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes the live BBR model state as Prometheus gauges
// and the mode-transition/LT-engagement history as counters.
type PrometheusMetrics struct {
	BandwidthBps  prometheus.Gauge
	MinRTTMs      prometheus.Gauge
	CwndPackets   prometheus.Gauge
	PacingRateBps prometheus.Gauge
	PacingGain    prometheus.Gauge
	CwndGain      prometheus.Gauge

	ModeCurrent     *prometheus.GaugeVec
	ModeTransitions *prometheus.CounterVec
	LTEngaged       prometheus.Gauge
	LTEngagements   prometheus.Counter
	ProbeRTTEntries prometheus.Counter
	SamplesDropped  prometheus.Counter

	ltEngaged bool // shadows LTEngaged's value; Gauge has no public getter
}

// NewPrometheusMetrics registers the default BBR metric set against the
// global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers the BBR metric set against the
// given registerer, for tests that need an isolated registry.
func NewPrometheusMetricsWithRegistry(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return newPrometheusMetrics(factory)
}

func newPrometheusMetrics(factory promauto.Factory) *PrometheusMetrics {

	return &PrometheusMetrics{
		BandwidthBps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_bandwidth_bytes_per_second",
			Help: "Current bw estimate (lt_bw when the LT estimator is engaged)",
		}),
		MinRTTMs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_min_rtt_milliseconds",
			Help: "Current min_rtt_us estimate, in milliseconds",
		}),
		CwndPackets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_cwnd_packets",
			Help: "Current congestion window, in packets",
		}),
		PacingRateBps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_pacing_rate_bytes_per_second",
			Help: "Current pacing rate applied to the host transport",
		}),
		PacingGain: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_pacing_gain",
			Help: "Current pacing_gain, scaled by 256 (BBR_UNIT)",
		}),
		CwndGain: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_cwnd_gain",
			Help: "Current cwnd_gain, scaled by 256 (BBR_UNIT)",
		}),
		ModeCurrent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbr_mode",
			Help: "1 for the currently active mode, 0 otherwise",
		}, []string{"mode"}),
		ModeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bbr_mode_transitions_total",
			Help: "Total transitions into each mode",
		}, []string{"mode"}),
		LTEngaged: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bbr_lt_use_bw",
			Help: "1 if the long-term (policer) bandwidth estimate is engaged",
		}),
		LTEngagements: factory.NewCounter(prometheus.CounterOpts{
			Name: "bbr_lt_engagements_total",
			Help: "Total number of times the LT bandwidth estimate engaged",
		}),
		ProbeRTTEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "bbr_probe_rtt_entries_total",
			Help: "Total number of PROBE_RTT entries",
		}),
		SamplesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "bbr_samples_dropped_total",
			Help: "Total rate samples dropped for a non-positive interval or negative delivered count",
		}),
	}
}

// Observe updates the gauges from a bbr.Info snapshot plus the mode name
// active before this sample, to detect a transition.
func (m *PrometheusMetrics) Observe(snap Snapshot, previousMode string) {
	m.BandwidthBps.Set(float64(snap.BWBytesPerSec))
	m.MinRTTMs.Set(float64(snap.MinRTTUS) / 1000.0)
	m.CwndPackets.Set(float64(snap.CwndPackets))
	m.PacingRateBps.Set(float64(snap.PacingRateBps))
	m.PacingGain.Set(float64(snap.PacingGain))
	m.CwndGain.Set(float64(snap.CwndGain))

	if previousMode != "" {
		m.ModeCurrent.WithLabelValues(previousMode).Set(0)
	}
	m.ModeCurrent.WithLabelValues(snap.Mode).Set(1)
	if snap.Mode != previousMode {
		m.ModeTransitions.WithLabelValues(snap.Mode).Inc()
		if snap.Mode == "PROBE_RTT" {
			m.ProbeRTTEntries.Inc()
		}
	}

	if snap.LTUseBW {
		m.LTEngaged.Set(1)
		if !m.ltEngaged {
			m.LTEngagements.Inc()
		}
	} else {
		m.LTEngaged.Set(0)
	}
	m.ltEngaged = snap.LTUseBW
}

// IncrementSamplesDropped counts one rate sample Main() rejected (§7).
func (m *PrometheusMetrics) IncrementSamplesDropped() {
	m.SamplesDropped.Inc()
}

// Snapshot is the set of values Observe needs: bbr.Info's diagnostics plus
// the cwnd, applied pacing rate and lt_use_bw, which bbr.Info does not carry.
type Snapshot struct {
	BWBytesPerSec uint64
	MinRTTUS      int64
	CwndPackets   uint32
	PacingRateBps uint64
	PacingGain    uint32
	CwndGain      uint32
	Mode          string
	LTUseBW       bool
}
