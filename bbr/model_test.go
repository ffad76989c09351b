package bbr

import "testing"

// P3: cwnd >= 4 after the first call to the control loop.
func TestCwndAtLeastFourAfterFirstSample(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	h.advance(c, 1, 10, 1000, 50_000, false, 0)
	if h.cwnd < 4 {
		t.Fatalf("cwnd = %d after first sample, want >= 4", h.cwnd)
	}
}

// P1: after update_bw, the filter's value is at least the most recent
// non-app-limited bw sample (a max filter never reports below its latest
// qualifying input).
func TestUpdateBWIsAtLeastLatestSample(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	rs := RateSample{Delivered: 100, PriorDelivered: 0, IntervalUS: 1000}
	c.updateRound(rs)
	c.updateBW(rs)

	sample := uint64(rs.Delivered) * BWUnit / uint64(rs.IntervalUS)
	got, ok := c.bwFilter.get()
	if !ok {
		t.Fatal("bwFilter.get() ok = false after a valid sample")
	}
	if got < sample {
		t.Fatalf("bwFilter.get() = %d, want >= latest sample %d", got, sample)
	}
}

// App-limited samples below the current estimate must not lower it (§4.3).
func TestUpdateBWIgnoresLowerAppLimitedSample(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	hi := RateSample{Delivered: 1000, PriorDelivered: 0, IntervalUS: 1000}
	c.updateRound(hi)
	c.updateBW(hi)
	before, _ := c.bwFilter.get()

	lo := RateSample{Delivered: 10, PriorDelivered: 1000, IntervalUS: 1000, IsAppLimited: true}
	c.updateRound(lo)
	c.updateBW(lo)
	after, _ := c.bwFilter.get()

	if after != before {
		t.Fatalf("an app-limited low sample changed bw from %d to %d", before, after)
	}
}

// P2: min_rtt_us never exceeds a recently observed sample RTT.
func TestUpdateMinRTTTracksMinimum(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	c.updateMinRTT(RateSample{RTTUS: 80_000}, 0)
	c.updateMinRTT(RateSample{RTTUS: 50_000}, 1)
	c.updateMinRTT(RateSample{RTTUS: 90_000}, 2)

	if c.minRTTUS != 50_000 {
		t.Fatalf("minRTTUS = %d, want 50000", c.minRTTUS)
	}
}

// P8: round_start is set exactly on the sample that starts a round, and
// cleared on the next one.
func TestRoundStartSignaledOnce(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	// c.delivered stands in for the cumulative counter Main() would have
	// cached from the host at the top of the call; updateRound arms
	// next_rtt_delivered from it, not from the per-interval rs.Delivered.
	c.delivered = 100
	first := RateSample{Delivered: 100, PriorDelivered: 0, IntervalUS: 1000}
	if !c.updateRound(first) || !c.roundStart {
		t.Fatal("first sample did not start a round")
	}

	// PriorDelivered=50 simulates a packet sent mid-round, before
	// next_rtt_delivered(=100) was reached: this sample belongs to the
	// round already in progress and must not start a new one.
	c.delivered = 250
	second := RateSample{Delivered: 150, PriorDelivered: 50, IntervalUS: 1000}
	if c.updateRound(second) || c.roundStart {
		t.Fatal("round_start was not cleared on the following sample")
	}
}

// §4.4: the ack-aggregation bonus never exceeds the bw*100ms cap.
func TestAckAggregationBonusIsCapped(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	rs := RateSample{Delivered: 1000, PriorDelivered: 0, IntervalUS: 1000}
	c.updateRound(rs)
	c.updateBW(rs)

	huge := RateSample{AckedSacked: 1 << 30}
	c.updateAckAggregation(huge, 0, 1<<30)

	cap := uint64(c.bw()) * extraAckedMaxUS / BWUnit
	if bonus := c.ackAggregationBonus(); bonus > cap {
		t.Fatalf("ackAggregationBonus() = %d, want <= cap %d", bonus, cap)
	}
}
