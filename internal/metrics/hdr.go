package metrics

import (
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HDRMetrics tracks percentile distributions of the bandwidth and RTT
// samples a bbr.Conn observes, independent of the live gauges in
// PrometheusMetrics: gauges show the current estimate, these histograms
// show its spread over the life of the connection.
type HDRMetrics struct {
	mu sync.RWMutex

	// Bandwidth: 1 byte/s to 100 GB/s, 3 significant digits.
	bandwidthHist *hdrhistogram.Histogram
	// RTT: 1us to 30s, 3 significant digits.
	rttHist *hdrhistogram.Histogram
	// Cwnd, in packets: 1 to 1<<20, 3 significant digits.
	cwndHist *hdrhistogram.Histogram

	probeRTTEntries int64
	ltEngagements   int64
	samplesDropped  int64
}

// NewHDRMetrics builds the BBR percentile histograms.
func NewHDRMetrics() *HDRMetrics {
	return &HDRMetrics{
		bandwidthHist: hdrhistogram.New(1, 100_000_000_000, 3),
		rttHist:       hdrhistogram.New(1, 30_000_000, 3),
		cwndHist:      hdrhistogram.New(1, 1<<20, 3),
	}
}

// RecordBandwidth records one bandwidth estimate, in bytes/second.
func (h *HDRMetrics) RecordBandwidth(bytesPerSec uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if bytesPerSec > 0 {
		h.bandwidthHist.RecordValue(int64(bytesPerSec))
	}
}

// RecordRTT records one RTT sample, in microseconds.
func (h *HDRMetrics) RecordRTT(rttUS int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rttUS > 0 {
		h.rttHist.RecordValue(rttUS)
	}
}

// RecordCwnd records one cwnd observation, in packets.
func (h *HDRMetrics) RecordCwnd(packets uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if packets > 0 {
		h.cwndHist.RecordValue(int64(packets))
	}
}

// IncrementProbeRTTEntries counts one PROBE_RTT entry.
func (h *HDRMetrics) IncrementProbeRTTEntries() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probeRTTEntries++
}

// IncrementLTEngagements counts one LT (policer) bandwidth engagement.
func (h *HDRMetrics) IncrementLTEngagements() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ltEngagements++
}

// IncrementSamplesDropped counts one rate sample Main() rejected (§7).
func (h *HDRMetrics) IncrementSamplesDropped() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samplesDropped++
}

// PercentileStats is a standard percentile summary over a histogram.
type PercentileStats struct {
	P50   float64
	P90   float64
	P95   float64
	P99   float64
	P999  float64
	Min   float64
	Max   float64
	Mean  float64
	Count int64
}

func statsFrom(hist *hdrhistogram.Histogram) PercentileStats {
	if hist.TotalCount() == 0 {
		return PercentileStats{}
	}
	return PercentileStats{
		P50:   float64(hist.ValueAtQuantile(50.0)),
		P90:   float64(hist.ValueAtQuantile(90.0)),
		P95:   float64(hist.ValueAtQuantile(95.0)),
		P99:   float64(hist.ValueAtQuantile(99.0)),
		P999:  float64(hist.ValueAtQuantile(99.9)),
		Min:   float64(hist.Min()),
		Max:   float64(hist.Max()),
		Mean:  hist.Mean(),
		Count: hist.TotalCount(),
	}
}

// BandwidthStats returns the bandwidth percentile summary, in bytes/second.
func (h *HDRMetrics) BandwidthStats() PercentileStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return statsFrom(h.bandwidthHist)
}

// RTTStats returns the RTT percentile summary, in microseconds.
func (h *HDRMetrics) RTTStats() PercentileStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return statsFrom(h.rttHist)
}

// CwndStats returns the cwnd percentile summary, in packets.
func (h *HDRMetrics) CwndStats() PercentileStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return statsFrom(h.cwndHist)
}

// EventCounts returns the cumulative mode/policer/drop event counters.
func (h *HDRMetrics) EventCounts() (probeRTTEntries, ltEngagements, samplesDropped int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.probeRTTEntries, h.ltEngagements, h.samplesDropped
}
