package telemetry

import (
	"context"
	"testing"
)

func newTestTelemetryManager(t *testing.T) *TelemetryManager {
	t.Helper()
	tm, err := NewTelemetryManager(context.Background(), TelemetryConfig{
		ServiceName:    "bbrsim-test",
		ServiceVersion: "test",
		Environment:    "test",
		SampleRate:     1.0,
	})
	if err != nil {
		t.Fatalf("NewTelemetryManager: %v", err)
	}
	t.Cleanup(func() {
		if err := tm.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return tm
}

func TestNewTelemetryManagerLocalProviders(t *testing.T) {
	newTestTelemetryManager(t)
}

func TestStartSpan(t *testing.T) {
	tm := newTestTelemetryManager(t)

	ctx, span := tm.StartSpan(context.Background(), "test-span")
	if ctx == nil {
		t.Fatal("StartSpan returned a nil context")
	}
	span.End()
}

func TestNewBBRMetrics(t *testing.T) {
	tm := newTestTelemetryManager(t)

	bm, err := NewBBRMetrics(tm)
	if err != nil {
		t.Fatalf("NewBBRMetrics: %v", err)
	}

	ctx := context.Background()
	bm.RecordBandwidth(ctx, 125_000)
	bm.RecordRTT(ctx, 0.02)
	bm.RecordMinRTT(ctx, 0.015)
	bm.RecordCwnd(ctx, 32)
	bm.IncrementModeTransitions(ctx, "STARTUP")
	bm.IncrementProbeRTTEntries(ctx)
	bm.IncrementSamplesDropped(ctx)
	bm.SetLTEngaged(ctx, true)
	bm.SetLTEngaged(ctx, true)
	bm.SetLTEngaged(ctx, false)
}
