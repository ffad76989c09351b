package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"bbrsim/bbr"
	"bbrsim/internal/metrics"
	"bbrsim/internal/telemetry"
)

func main() {
	var (
		preset     = flag.String("preset", "good", "Network preset (excellent, good, poor, mobile, satellite, adversarial)")
		rounds     = flag.Int("rounds", 60, "Number of simulated round-trips to drive")
		appLimited = flag.Int("app-limited-at", 0, "Round at which the sender goes application-limited for one round (0 = never)")
		plotHeight = flag.Int("plot-height", 12, "Height of the bandwidth ASCII plot")
		seed       = flag.Uint64("seed", 1, "Loss-sequence random seed")
		otlpAddr   = flag.String("otlp-endpoint", "", "OTLP/HTTP collector endpoint for spans (empty disables span export)")
	)
	flag.Parse()

	p, ok := netPresets[*preset]
	if !ok {
		names := make([]string, 0, len(netPresets))
		for name := range netPresets {
			names = append(names, name)
		}
		fmt.Fprintf(os.Stderr, "unknown preset %q, want one of: %s\n", *preset, strings.Join(names, ", "))
		os.Exit(1)
	}

	fmt.Printf("bbrsim — BBR congestion control simulation\n")
	fmt.Printf("preset=%s bandwidth=%d Bps rtt=%dus loss=%.3f%%\n\n",
		p.name, p.bandwidthBps, p.rttUS, p.lossPerRound*100)

	ctx := context.Background()

	reg := stdprometheus.NewRegistry()
	prom := metrics.NewPrometheusMetricsWithRegistry(reg)
	hdr := metrics.NewHDRMetrics()

	tm, err := telemetry.NewTelemetryManager(ctx, telemetry.TelemetryConfig{
		ServiceName:          "bbrsim",
		ServiceVersion:       "dev",
		Environment:          "simulation",
		OTLPEndpoint:         *otlpAddr,
		PrometheusAddr:       "bridged", // toggles the OTel Prometheus reader; bridged onto reg below
		PrometheusRegisterer: reg,
		SampleRate:           1.0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := tm.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	bm, err := telemetry.NewBBRMetrics(tm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry metrics init failed: %v\n", err)
		os.Exit(1)
	}

	host := newSimHost(p)
	conn := bbr.Init(host, bbr.DefaultParams())
	rng := rand.New(rand.NewPCG(*seed, *seed))

	cci := metrics.NewCCIntegration(conn, host.SndCwnd, prom, hdr)

	runCtx, span := tm.StartSpan(ctx, "bbrsim.run")

	type row struct {
		round     uint64
		mode      string
		bwBps     uint64
		cwnd      uint32
		pacingBps uint64
		minRTTUS  int64
		ltEngaged bool
	}
	var rows []row
	var bwSeries []float64

	prevMode := ""
	var probeRTTSpan trace.Span
	for i := 1; i <= *rounds; i++ {
		if *appLimited > 0 && i == *appLimited {
			host.appLtd = true
			conn.CwndEvent(bbr.EventTxStart)
		} else {
			host.appLtd = false
		}

		lossThisRound := rng.Float64() < p.lossPerRound
		rs := host.step(lossThisRound)
		conn.Main(rs)

		info := conn.GetInfo()

		cci.UpdateMetrics()
		bm.RecordBandwidth(runCtx, float64(info.BWBytesPerSec))
		if info.MinRTTUS > 0 {
			bm.RecordRTT(runCtx, float64(info.MinRTTUS)/1_000_000)
			bm.RecordMinRTT(runCtx, float64(info.MinRTTUS)/1_000_000)
		}
		bm.RecordCwnd(runCtx, int64(host.SndCwnd()))
		bm.SetLTEngaged(runCtx, conn.LTEngaged())
		if info.Mode != prevMode {
			bm.IncrementModeTransitions(runCtx, info.Mode)
			if info.Mode == "PROBE_RTT" {
				bm.IncrementProbeRTTEntries(runCtx)
				_, probeRTTSpan = tm.StartSpan(runCtx, "bbrsim.probe_rtt")
			} else if prevMode == "PROBE_RTT" && probeRTTSpan != nil {
				probeRTTSpan.End()
				probeRTTSpan = nil
			}
		}
		prevMode = info.Mode

		rows = append(rows, row{
			round:     uint64(i),
			mode:      info.Mode,
			bwBps:     info.BWBytesPerSec,
			cwnd:      host.SndCwnd(),
			pacingBps: conn.PacingRateBps(),
			minRTTUS:  info.MinRTTUS,
			ltEngaged: conn.LTEngaged(),
		})
		bwSeries = append(bwSeries, float64(info.BWBytesPerSec)*8/1_000_000)
	}
	if probeRTTSpan != nil {
		probeRTTSpan.End()
	}
	span.End()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Round", "Mode", "BW (Mbps)", "Cwnd", "Pacing (Mbps)", "MinRTT (ms)", "LT"})
	for _, r := range rows {
		table.Append([]string{
			fmt.Sprintf("%d", r.round),
			colorizeMode(r.mode),
			fmt.Sprintf("%.2f", float64(r.bwBps)*8/1_000_000),
			fmt.Sprintf("%d", r.cwnd),
			fmt.Sprintf("%.2f", float64(r.pacingBps)*8/1_000_000),
			fmt.Sprintf("%.1f", float64(r.minRTTUS)/1000),
			ltMarker(r.ltEngaged),
		})
	}
	table.Render()

	fmt.Println()
	fmt.Println(asciigraph.Plot(bwSeries,
		asciigraph.Height(*plotHeight),
		asciigraph.Caption("bandwidth estimate (Mbps)")))

	printHistogramSummary(hdr)
}

func printHistogramSummary(hdr *metrics.HDRMetrics) {
	bwStats := hdr.BandwidthStats()
	rttStats := hdr.RTTStats()
	cwndStats := hdr.CwndStats()
	probeRTTEntries, ltEngagements, samplesDropped := hdr.EventCounts()

	fmt.Println()
	fmt.Println("percentile summary (HDR histograms):")
	fmt.Printf("  bandwidth (Mbps):  p50=%.2f p90=%.2f p99=%.2f max=%.2f\n",
		bwStats.P50*8/1_000_000, bwStats.P90*8/1_000_000, bwStats.P99*8/1_000_000, bwStats.Max*8/1_000_000)
	fmt.Printf("  min_rtt (ms):      p50=%.2f p90=%.2f p99=%.2f max=%.2f\n",
		rttStats.P50/1000, rttStats.P90/1000, rttStats.P99/1000, rttStats.Max/1000)
	fmt.Printf("  cwnd (packets):    p50=%.0f p90=%.0f p99=%.0f max=%.0f\n",
		cwndStats.P50, cwndStats.P90, cwndStats.P99, cwndStats.Max)
	fmt.Printf("  events:            probe_rtt_entries=%d lt_engagements=%d samples_dropped=%d\n",
		probeRTTEntries, ltEngagements, samplesDropped)
}

func colorizeMode(mode string) string {
	switch mode {
	case "STARTUP":
		return color.YellowString(mode)
	case "DRAIN":
		return color.MagentaString(mode)
	case "PROBE_BW":
		return color.GreenString(mode)
	case "PROBE_RTT":
		return color.CyanString(mode)
	default:
		return mode
	}
}

func ltMarker(engaged bool) string {
	if engaged {
		return color.RedString("lt")
	}
	return ""
}
