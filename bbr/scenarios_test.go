package bbr

import "testing"

// S1: a connection ramps through STARTUP, detects a full pipe once
// bandwidth growth plateaus for full_bw_cnt rounds, drains the queue built
// up during STARTUP, and lands in PROBE_BW.
func TestScenarioStartupDrainProbeBW(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())

	if c.mode.kind() != modeStartup {
		t.Fatalf("initial mode = %s, want STARTUP", c.mode.kind())
	}

	// Grow delivered bandwidth well past full_bw_thresh each round.
	delivered := int64(1000)
	for i := 0; i < 4; i++ {
		h.advance(c, 1, delivered, 1000, 50_000, false, 0)
		delivered = delivered * 3 / 2
	}
	if c.fullBWReached {
		t.Fatal("full_bw_reached set while bandwidth was still growing")
	}

	// Now plateau: full_bw_cnt consecutive rounds with no further growth.
	for i := 0; i < DefaultParams().FullBWCnt; i++ {
		h.advance(c, 1, delivered, 1000, 50_000, false, 0)
	}
	if !c.fullBWReached {
		t.Fatal("full_bw_reached was not set after full_bw_cnt flat rounds")
	}
	if c.mode.kind() != modeDrain {
		t.Fatalf("mode = %s after pipe-full detection, want DRAIN", c.mode.kind())
	}

	// Once in-flight falls to the unit-gain target, DRAIN hands off to
	// PROBE_BW.
	h.cwnd = 1
	h.advance(c, 1, delivered, 1000, 50_000, false, 0)
	if c.mode.kind() != modeProbeBW {
		t.Fatalf("mode = %s after in-flight drained, want PROBE_BW", c.mode.kind())
	}
}

// S2: PROBE_BW rotates through its 8-phase pacing-gain schedule in order.
func TestScenarioProbeBWGainCycleOrder(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	c.mode = &probeBWState{cycleIdx: 0, cycleStamp: c.now}
	c.cwndGain = probeBWCwndGain
	c.pacingGain = probeBWGainCycle[0]

	for want := 1; want <= 8; want++ {
		c.now += 1000
		c.advanceCycle(RateSample{}, 1<<20)
		pb := c.mode.(*probeBWState)
		wantIdx := want % len(probeBWGainCycle)
		if pb.cycleIdx != wantIdx {
			t.Fatalf("round %d: cycleIdx = %d, want %d", want, pb.cycleIdx, wantIdx)
		}
		if c.pacingGain != probeBWGainCycle[wantIdx] {
			t.Fatalf("round %d: pacingGain = %d, want %d", want, c.pacingGain, probeBWGainCycle[wantIdx])
		}
	}
}

// S3: once the min_rtt window expires, the next sample enters PROBE_RTT.
func TestScenarioMinRTTExpiryEntersProbeRTT(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	c.mode = startupState{}

	h.srtt = 50_000
	h.advance(c, 1, 1000, 1000, 50_000, false, 0)
	if c.mode.kind() == modeProbeRTT {
		t.Fatal("entered PROBE_RTT before the min_rtt window could expire")
	}

	// Push the fake jiffy clock past the 10-second window without a lower
	// RTT sample arriving in between.
	h.jf += Jiffies(DefaultParams().MinRTTWinSec) * DefaultParams().JiffiesPerSec * 2
	h.us += 1_000_000

	h.advance(c, 1, 1100, 1000, 60_000, false, 0)
	if c.mode.kind() != modeProbeRTT {
		t.Fatalf("mode = %s after min_rtt window expired, want PROBE_RTT", c.mode.kind())
	}
}

// S4: two consecutive lossy sampling intervals with closely agreeing
// throughput engage the LT (policer) bandwidth estimate.
func TestScenarioPolicerDetectionEngagesLTBandwidth(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	c.mode = &probeBWState{cycleIdx: 2, cycleStamp: c.now}
	c.cwndGain = probeBWCwndGain
	c.pacingGain = unitGain

	stamp := USec(0)
	runInterval := func(rtts int, bwDeliveredPerRTT int64, intervalUS int64, loseAtEnd bool) {
		for i := 0; i < rtts; i++ {
			stamp += USec(intervalUS)
			losses := 0
			if loseAtEnd && i == rtts-1 {
				losses = 1
			}
			h.delivd += bwDeliveredPerRTT
			h.lost += int64(losses)
			c.lt.update(c, RateSample{
				Delivered:       h.delivd,
				PriorDelivered:  h.delivd - bwDeliveredPerRTT,
				IntervalUS:      intervalUS,
				RTTUS:           50_000,
				Losses:          losses,
				DeliveredMstamp: stamp,
			})
		}
	}

	// First interval: triggers sampling on its first loss, runs
	// lt_intvl_min_rtts rounds, ends on a loss with a high loss ratio
	// (1 lost of 4 delivered).
	runInterval(1, 0, 1000, true) // arms sampling
	runInterval(DefaultParams().LTIntvlMinRTTs, 1, 100_000, true)
	if c.lt.useBW {
		t.Fatal("LT engaged after only one interval")
	}

	// Second interval: same throughput, same shape -> should agree with
	// the first and engage lt_use_bw.
	runInterval(1, 0, 1000, true)
	runInterval(DefaultParams().LTIntvlMinRTTs, 1, 100_000, true)

	if !c.lt.useBW {
		t.Fatal("LT estimator did not engage after two agreeing lossy intervals")
	}
	if c.pacingGain != unitGain {
		t.Fatalf("pacingGain = %d after LT engagement, want unitGain", c.pacingGain)
	}
}

// S5: cwnd saved before loss recovery is restored, never lowered, once
// recovery ends.
func TestScenarioRecoveryCwndSaveAndRestore(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	h.cwnd = 40

	h.ca = CARecovery
	c.saveCwnd()
	if c.priorCwnd != 40 {
		t.Fatalf("priorCwnd = %d after entering recovery, want 40", c.priorCwnd)
	}

	h.cwnd = 5 // recovery collapsed cwnd
	h.ca = CAOpen
	c.prevCAState = CARecovery
	c.updateCwnd(RateSample{}, 0, c.targetCwnd())

	if h.cwnd < 40 {
		t.Fatalf("cwnd = %d after recovery exit, want restored to at least priorCwnd=40", h.cwnd)
	}
}

// S6: a transmit following an idle period resets the ack-aggregation epoch
// and, in PROBE_BW, re-paces at unit gain until fresh samples arrive.
func TestScenarioIdleRestartResetsAckEpoch(t *testing.T) {
	h := newFakeHost()
	c := Init(h, DefaultParams())
	c.mode = &probeBWState{cycleIdx: 0, cycleStamp: c.now}
	c.pacingGain = probeBWGainCycle[0]
	c.fullBWReached = true // PROBE_BW is only reached once the pipe is full

	c.ackEpochAcked = 12345
	h.appLtd = true
	h.us = 5_000_000

	c.CwndEvent(EventTxStart)

	if !c.idleRestart {
		t.Fatal("idle_restart was not set on an app-limited TX_START event")
	}
	if c.ackEpochAcked != 0 {
		t.Fatalf("ackEpochAcked = %d after idle restart, want 0", c.ackEpochAcked)
	}
	if want := bwToPacingRateBps(c.bw(), h.mss, unitGain); h.pacingRate != want {
		t.Fatalf("pacing rate = %d after idle restart in PROBE_BW, want the unit-gain rate %d", h.pacingRate, want)
	}
}
