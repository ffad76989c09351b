package metrics

import (
	"time"

	"bbrsim/bbr"
)

// ConnSource is the subset of bbr.Conn the integration layer samples: a
// diagnostics snapshot (§6 get_info) plus the two fields get_info omits
// (lt_use_bw, the applied pacing rate). The host's cwnd is not part of it;
// NewCCIntegration takes a separate accessor for that.
type ConnSource interface {
	GetInfo() bbr.Info
	LTEngaged() bool
	PacingRateBps() uint64
}

// CCIntegration bridges a bbr.Conn's diagnostics into the Prometheus gauges
// and HDR percentile histograms of this package.
type CCIntegration struct {
	conn ConnSource
	cwnd func() uint32
	prom *PrometheusMetrics
	hdr  *HDRMetrics

	prevMode     string
	wasLTEngaged bool
}

// NewCCIntegration wires a bbr.Conn (and a cwnd accessor, since cwnd lives
// on the host the caller owns, not on get_info's §6 contract) to the given
// metric sinks.
func NewCCIntegration(conn ConnSource, cwnd func() uint32, prom *PrometheusMetrics, hdr *HDRMetrics) *CCIntegration {
	return &CCIntegration{conn: conn, cwnd: cwnd, prom: prom, hdr: hdr}
}

// UpdateMetrics samples the connection once, updating both sinks.
func (cci *CCIntegration) UpdateMetrics() {
	info := cci.conn.GetInfo()
	cwnd := cci.cwnd()
	ltEngaged := cci.conn.LTEngaged()
	pacingRate := cci.conn.PacingRateBps()

	if cci.prom != nil {
		cci.prom.Observe(Snapshot{
			BWBytesPerSec: info.BWBytesPerSec,
			MinRTTUS:      info.MinRTTUS,
			CwndPackets:   cwnd,
			PacingRateBps: pacingRate,
			PacingGain:    uint32(info.PacingGain),
			CwndGain:      uint32(info.CwndGain),
			Mode:          info.Mode,
			LTUseBW:       ltEngaged,
		}, cci.prevMode)
	}

	if cci.hdr != nil {
		cci.hdr.RecordBandwidth(info.BWBytesPerSec)
		if info.MinRTTUS > 0 {
			cci.hdr.RecordRTT(info.MinRTTUS)
		}
		cci.hdr.RecordCwnd(cwnd)
		if info.Mode == "PROBE_RTT" && info.Mode != cci.prevMode {
			cci.hdr.IncrementProbeRTTEntries()
		}
		if ltEngaged && cci.prevMode != "" && !cci.wasLTEngaged {
			cci.hdr.IncrementLTEngagements()
		}
	}

	cci.wasLTEngaged = ltEngaged
	cci.prevMode = info.Mode
}

// StartMetricsCollection runs UpdateMetrics on a ticker until stop is
// closed.
func (cci *CCIntegration) StartMetricsCollection(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cci.UpdateMetrics()
			case <-stop:
				return
			}
		}
	}()
}
