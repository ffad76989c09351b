package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bbrsim/bbr"
)

// fakeConnSource is a scripted ConnSource double, matching the bbr package's
// own fakeHost convention of a small hand-rolled fake over a generated mock.
type fakeConnSource struct {
	info      bbr.Info
	ltEngaged bool
	pacing    uint64
}

func (f *fakeConnSource) GetInfo() bbr.Info     { return f.info }
func (f *fakeConnSource) LTEngaged() bool       { return f.ltEngaged }
func (f *fakeConnSource) PacingRateBps() uint64 { return f.pacing }

func TestCCIntegrationUpdateMetrics(t *testing.T) {
	src := &fakeConnSource{
		info: bbr.Info{
			BWBytesPerSec: 500_000,
			MinRTTUS:      15_000,
			PacingGain:    256,
			CwndGain:      512,
			Mode:          "STARTUP",
		},
		ltEngaged: false,
		pacing:    520_000,
	}
	cwnd := uint32(16)

	prom := NewPrometheusMetricsWithRegistry(prometheus.NewRegistry())
	hdr := NewHDRMetrics()
	cci := NewCCIntegration(src, func() uint32 { return cwnd }, prom, hdr)

	cci.UpdateMetrics()

	if got := testutil.ToFloat64(prom.BandwidthBps); got != 500_000 {
		t.Errorf("BandwidthBps = %f, want 500000", got)
	}
	if got := testutil.ToFloat64(prom.CwndPackets); got != 16 {
		t.Errorf("CwndPackets = %f, want 16", got)
	}
	stats := hdr.BandwidthStats()
	if stats.Count != 1 {
		t.Errorf("bandwidth histogram count = %d, want 1", stats.Count)
	}

	src.info.Mode = "PROBE_RTT"
	cci.UpdateMetrics()

	probeRTT, _, _ := hdr.EventCounts()
	if probeRTT != 1 {
		t.Errorf("probeRTTEntries = %d, want 1", probeRTT)
	}
	if got := testutil.ToFloat64(prom.ProbeRTTEntries); got != 1 {
		t.Errorf("prometheus ProbeRTTEntries = %f, want 1", got)
	}

	src.ltEngaged = true
	src.info.Mode = "PROBE_BW"
	cci.UpdateMetrics()

	_, lt, _ := hdr.EventCounts()
	if lt != 1 {
		t.Errorf("ltEngagements = %d, want 1", lt)
	}
}

func TestCCIntegrationSkipsNilSinks(t *testing.T) {
	src := &fakeConnSource{info: bbr.Info{Mode: "STARTUP"}}
	cci := NewCCIntegration(src, func() uint32 { return 10 }, nil, nil)

	cci.UpdateMetrics() // must not panic with both sinks nil
}
