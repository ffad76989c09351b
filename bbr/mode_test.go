package bbr

import "testing"

// P4: while in PROBE_RTT, both gains sit at unit and cwnd is clamped to
// cwnd_min_target.
func TestProbeRTTClampsGainsAndCwnd(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	h.cwnd = 64

	c.enterProbeRTT()
	if c.pacingGain != unitGain || c.cwndGain != unitGain {
		t.Fatalf("PROBE_RTT gains = (%d, %d), want (%d, %d)", c.pacingGain, c.cwndGain, unitGain, unitGain)
	}

	c.updateCwnd(RateSample{}, 0, c.targetCwnd())
	if h.cwnd > c.params.CwndMinTarget {
		t.Fatalf("cwnd = %d in PROBE_RTT, want <= %d", h.cwnd, c.params.CwndMinTarget)
	}
}

// P5: full_bw_reached never goes from true back to false, even across
// UndoCwnd (§9 Open Question: undo_cwnd resets pipe-full detection counters
// but not the reached flag itself).
func TestFullBWReachedIsMonotonic(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	c.fullBWReached = true
	c.UndoCwnd()
	if !c.fullBWReached {
		t.Fatal("full_bw_reached was cleared by UndoCwnd")
	}

	h.advance(c, 3, 1000, 1000, 50_000, false, 0)
	if !c.fullBWReached {
		t.Fatal("full_bw_reached was cleared by ordinary Main() samples")
	}
}

// P6: the PROBE_BW cycle index advances mod 8, and cycle_mstamp never moves
// backwards.
func TestProbeBWCycleIndexWrapsModEight(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	c.enterProbeBW()

	pb := c.mode.(*probeBWState)
	lastStamp := pb.cycleStamp
	seen := map[int]bool{}
	for i := 0; i < 16; i++ {
		c.now += 1000 // past the elapsed-cycle threshold, which is 0 while min_rtt is unknown
		// A large in-flight count satisfies the gain>1 arm's "queue built up
		// enough" condition; the gain<1 and unit-gain arms advance on the
		// elapsed time alone.
		c.advanceCycle(RateSample{}, 1<<20)

		pb = c.mode.(*probeBWState)
		if pb.cycleIdx < 0 || pb.cycleIdx >= len(probeBWGainCycle) {
			t.Fatalf("cycleIdx = %d out of range", pb.cycleIdx)
		}
		seen[pb.cycleIdx] = true
		if pb.cycleStamp < lastStamp {
			t.Fatalf("cycleStamp moved backwards: %d -> %d", lastStamp, pb.cycleStamp)
		}
		lastStamp = pb.cycleStamp
	}
	if len(seen) != len(probeBWGainCycle) {
		t.Fatalf("observed %d distinct phases, want %d", len(seen), len(probeBWGainCycle))
	}
}

// P7: once the LT estimator engages, bw() substitutes the policed rate for
// the windowed-max filter value.
func TestLTUseBWSubstitutesFilterValue(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	c.bwFilter.reset(0, uint64(BWUnit)*1000)
	before := c.bw()
	if before == 0 {
		t.Fatal("bw() = 0 before LT engagement, want the filter's seeded value")
	}

	c.lt.bw = BW(BWUnit) * 7
	c.lt.useBW = true
	if got := c.bw(); got != c.lt.bw {
		t.Fatalf("bw() = %d with lt_use_bw engaged, want lt_bw = %d", got, c.lt.bw)
	}
}
