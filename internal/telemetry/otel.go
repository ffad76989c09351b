package telemetry

import (
	"context"
	"fmt"

	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryManager owns the OpenTelemetry tracer and meter providers for a
// bbrsim process: span creation for scenario runs, plus instrument
// factories for BBRMetrics.
type TelemetryManager struct {
	tracer   trace.Tracer
	meter    metric.Meter
	shutdown func(context.Context) error
}

// TelemetryConfig configures the tracer/meter providers.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	PrometheusAddr string

	// PrometheusRegisterer, when set alongside PrometheusAddr, bridges the
	// OTel meter's Prometheus reader onto the same registry a caller's
	// internal/metrics.PrometheusMetrics is registered against, so OTel
	// instruments and the hand-registered gauges/counters are scraped
	// together. Nil uses the OTel exporter's own internal registry.
	PrometheusRegisterer stdprometheus.Registerer

	SampleRate float64
}

// NewTelemetryManager builds the tracer and meter providers described by
// cfg and installs them as the global OTel providers.
func NewTelemetryManager(ctx context.Context, cfg TelemetryConfig) (*TelemetryManager, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		)
	} else {
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		)
	}

	var mp *sdkmetric.MeterProvider
	if cfg.PrometheusAddr != "" {
		var promOpts []otelprometheus.Option
		if cfg.PrometheusRegisterer != nil {
			promOpts = append(promOpts, otelprometheus.WithRegisterer(cfg.PrometheusRegisterer))
		}
		exporter, err := otelprometheus.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
	} else {
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
		)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := mp.Meter(cfg.ServiceName)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
		if len(errs) > 0 {
			return fmt.Errorf("shutdown errors: %v", errs)
		}
		return nil
	}

	return &TelemetryManager{
		tracer:   tracer,
		meter:    meter,
		shutdown: shutdown,
	}, nil
}

// StartSpan starts a child span, e.g. around one simulated connection or
// one scenario run.
func (tm *TelemetryManager) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, name, opts...)
}

func (tm *TelemetryManager) CreateInt64Counter(name, description string) (instrument.Int64Counter, error) {
	return tm.meter.Int64Counter(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Counter(name, description string) (instrument.Float64Counter, error) {
	return tm.meter.Float64Counter(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateInt64Histogram(name, description string) (instrument.Int64Histogram, error) {
	return tm.meter.Int64Histogram(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Histogram(name, description string) (instrument.Float64Histogram, error) {
	return tm.meter.Float64Histogram(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateInt64Gauge(name, description string) (instrument.Int64Gauge, error) {
	return tm.meter.Int64Gauge(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Gauge(name, description string) (instrument.Float64Gauge, error) {
	return tm.meter.Float64Gauge(name, instrument.WithDescription(description))
}

// Shutdown flushes and stops the tracer and meter providers.
func (tm *TelemetryManager) Shutdown(ctx context.Context) error {
	return tm.shutdown(ctx)
}

// BBRMetrics is the OTel instrument set for a bbr.Conn: mode transitions,
// policer (LT) engagement, and the bandwidth/min_rtt/cwnd distributions,
// mirroring internal/metrics' Prometheus and HDR sinks. They are exported
// only through the meter provider's Prometheus reader (when PrometheusAddr
// is set); no OTLP metric exporter is configured.
type BBRMetrics struct {
	ModeTransitionsTotal instrument.Int64Counter
	ProbeRTTEntriesTotal instrument.Int64Counter
	LTEngagementsTotal   instrument.Int64Counter
	SamplesDroppedTotal  instrument.Int64Counter

	BandwidthHistogram instrument.Float64Histogram
	RTTHistogram       instrument.Float64Histogram
	CwndHistogram      instrument.Int64Histogram

	CurrentBandwidth instrument.Float64Gauge
	CurrentMinRTT    instrument.Float64Gauge
	CurrentCwnd      instrument.Int64Gauge
	LTEngagedGauge   instrument.Int64Gauge

	ltEngaged bool
}

// NewBBRMetrics creates the BBR OTel instrument set against tm's meter.
func NewBBRMetrics(tm *TelemetryManager) (*BBRMetrics, error) {
	modeTransitionsTotal, err := tm.CreateInt64Counter("bbr_mode_transitions_total", "Total transitions into each BBR mode")
	if err != nil {
		return nil, fmt.Errorf("failed to create mode transitions counter: %w", err)
	}

	probeRTTEntriesTotal, err := tm.CreateInt64Counter("bbr_probe_rtt_entries_total", "Total PROBE_RTT entries")
	if err != nil {
		return nil, fmt.Errorf("failed to create PROBE_RTT entries counter: %w", err)
	}

	ltEngagementsTotal, err := tm.CreateInt64Counter("bbr_lt_engagements_total", "Total long-term (policer) bandwidth engagements")
	if err != nil {
		return nil, fmt.Errorf("failed to create LT engagements counter: %w", err)
	}

	samplesDroppedTotal, err := tm.CreateInt64Counter("bbr_samples_dropped_total", "Total rate samples dropped for a non-positive interval or negative delivered count")
	if err != nil {
		return nil, fmt.Errorf("failed to create samples dropped counter: %w", err)
	}

	bandwidthHistogram, err := tm.CreateFloat64Histogram("bbr_bandwidth_bytes_per_second_distribution", "Distribution of the bw estimate over the connection's life")
	if err != nil {
		return nil, fmt.Errorf("failed to create bandwidth histogram: %w", err)
	}

	rttHistogram, err := tm.CreateFloat64Histogram("bbr_rtt_seconds_distribution", "Distribution of observed RTT samples")
	if err != nil {
		return nil, fmt.Errorf("failed to create RTT histogram: %w", err)
	}

	cwndHistogram, err := tm.CreateInt64Histogram("bbr_cwnd_packets_distribution", "Distribution of the congestion window, in packets")
	if err != nil {
		return nil, fmt.Errorf("failed to create cwnd histogram: %w", err)
	}

	currentBandwidth, err := tm.CreateFloat64Gauge("bbr_bandwidth_bytes_per_second", "Current bw estimate")
	if err != nil {
		return nil, fmt.Errorf("failed to create current bandwidth gauge: %w", err)
	}

	currentMinRTT, err := tm.CreateFloat64Gauge("bbr_min_rtt_seconds", "Current min_rtt_us estimate")
	if err != nil {
		return nil, fmt.Errorf("failed to create current min_rtt gauge: %w", err)
	}

	currentCwnd, err := tm.CreateInt64Gauge("bbr_cwnd_packets", "Current congestion window, in packets")
	if err != nil {
		return nil, fmt.Errorf("failed to create current cwnd gauge: %w", err)
	}

	ltEngagedGauge, err := tm.CreateInt64Gauge("bbr_lt_use_bw", "1 if the long-term bandwidth estimate is currently engaged")
	if err != nil {
		return nil, fmt.Errorf("failed to create LT engaged gauge: %w", err)
	}

	return &BBRMetrics{
		ModeTransitionsTotal: modeTransitionsTotal,
		ProbeRTTEntriesTotal: probeRTTEntriesTotal,
		LTEngagementsTotal:   ltEngagementsTotal,
		SamplesDroppedTotal:  samplesDroppedTotal,
		BandwidthHistogram:   bandwidthHistogram,
		RTTHistogram:         rttHistogram,
		CwndHistogram:        cwndHistogram,
		CurrentBandwidth:     currentBandwidth,
		CurrentMinRTT:        currentMinRTT,
		CurrentCwnd:          currentCwnd,
		LTEngagedGauge:       ltEngagedGauge,
	}, nil
}

// RecordBandwidth records one bw estimate, in bytes/second, into both the
// distribution histogram and the current-value gauge.
func (bm *BBRMetrics) RecordBandwidth(ctx context.Context, bytesPerSec float64, attrs ...attribute.KeyValue) {
	bm.BandwidthHistogram.Record(ctx, bytesPerSec, attrs...)
	bm.CurrentBandwidth.Record(ctx, bytesPerSec, attrs...)
}

// RecordRTT records one RTT sample, in seconds.
func (bm *BBRMetrics) RecordRTT(ctx context.Context, rttSeconds float64, attrs ...attribute.KeyValue) {
	bm.RTTHistogram.Record(ctx, rttSeconds, attrs...)
}

// RecordMinRTT updates the current min_rtt gauge, in seconds.
func (bm *BBRMetrics) RecordMinRTT(ctx context.Context, minRTTSeconds float64, attrs ...attribute.KeyValue) {
	bm.CurrentMinRTT.Record(ctx, minRTTSeconds, attrs...)
}

// RecordCwnd records one cwnd observation, in packets.
func (bm *BBRMetrics) RecordCwnd(ctx context.Context, packets int64, attrs ...attribute.KeyValue) {
	bm.CwndHistogram.Record(ctx, packets, attrs...)
	bm.CurrentCwnd.Record(ctx, packets, attrs...)
}

// IncrementModeTransitions counts one mode-machine transition, labeled by
// the destination mode.
func (bm *BBRMetrics) IncrementModeTransitions(ctx context.Context, mode string) {
	bm.ModeTransitionsTotal.Add(ctx, 1, attribute.String("mode", mode))
}

// IncrementProbeRTTEntries counts one PROBE_RTT entry.
func (bm *BBRMetrics) IncrementProbeRTTEntries(ctx context.Context) {
	bm.ProbeRTTEntriesTotal.Add(ctx, 1)
}

// SetLTEngaged records the LT (policer) bandwidth estimate's current
// engagement state, incrementing the engagement counter on a false->true
// edge.
func (bm *BBRMetrics) SetLTEngaged(ctx context.Context, engaged bool) {
	if engaged {
		bm.LTEngagedGauge.Record(ctx, 1)
		if !bm.ltEngaged {
			bm.LTEngagementsTotal.Add(ctx, 1)
		}
	} else {
		bm.LTEngagedGauge.Record(ctx, 0)
	}
	bm.ltEngaged = engaged
}

// IncrementSamplesDropped counts one rate sample dropped for a
// non-positive interval or negative delivered count.
func (bm *BBRMetrics) IncrementSamplesDropped(ctx context.Context) {
	bm.SamplesDroppedTotal.Add(ctx, 1)
}
