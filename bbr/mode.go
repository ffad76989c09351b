package bbr

import (
	"math/rand/v2"

	"go.uber.org/zap"
)

// modeKind identifies which of the four mode variants is active.
type modeKind int

const (
	modeStartup modeKind = iota
	modeDrain
	modeProbeBW
	modeProbeRTT
)

func (k modeKind) String() string {
	switch k {
	case modeStartup:
		return "STARTUP"
	case modeDrain:
		return "DRAIN"
	case modeProbeBW:
		return "PROBE_BW"
	case modeProbeRTT:
		return "PROBE_RTT"
	default:
		return "UNKNOWN"
	}
}

// modeState is the closed sum of the four mode variants (§9 design note:
// "make illegal states unrepresentable"). Only PROBE_BW and PROBE_RTT carry
// variant-specific data; STARTUP and DRAIN are stateless singletons.
type modeState interface {
	kind() modeKind
}

type startupState struct{}

func (startupState) kind() modeKind { return modeStartup }

type drainState struct{}

func (drainState) kind() modeKind { return modeDrain }

// probeBWState holds the 8-phase pacing-gain cycle position.
type probeBWState struct {
	cycleIdx   int  // 0..7
	cycleStamp USec // timestamp the current phase started
}

func (*probeBWState) kind() modeKind { return modeProbeBW }

// probeRTTState holds the PROBE_RTT exit-condition bookkeeping.
type probeRTTState struct {
	doneStamp USec // set once in-flight first reaches the floor
	doneSet   bool
	roundDone bool
}

func (*probeRTTState) kind() modeKind { return modeProbeRTT }

// enterStartup resets the connection to STARTUP at the reference gains.
func (c *Conn) enterStartup() {
	c.mode = startupState{}
	c.pacingGain = highGain
	c.cwndGain = highGain
}

// enterDrain switches to DRAIN: pacing_gain drains the STARTUP queue in
// about one round; cwnd_gain is left unchanged, per §4.5.
func (c *Conn) enterDrain() {
	c.mode = drainState{}
	c.pacingGain = drainGain
	log.Debug("bbr mode transition", zap.String("mode", modeDrain.String()))
}

// enterProbeBW switches to PROBE_BW and picks an initial phase uniformly in
// [0, CycleRand) (§9 Open Question: this range is not restricted to exclude
// the 3/4-gain phase, only phase CycleRand..7; reproduced as specified).
func (c *Conn) enterProbeBW() {
	idx := rand.N(c.params.CycleRand)
	c.mode = &probeBWState{cycleIdx: idx, cycleStamp: c.now}
	c.cwndGain = probeBWCwndGain
	c.pacingGain = probeBWGainCycle[idx]
	log.Debug("bbr mode transition", zap.String("mode", modeProbeBW.String()), zap.Int("cycle_idx", idx))
}

// restartProbeBWCycle re-randomizes the PROBE_BW phase without changing
// mode; used when the LT estimator disengages after lt_bw_max_rtts (§4.8).
func (c *Conn) restartProbeBWCycle() {
	if c.mode.kind() != modeProbeBW {
		return
	}
	idx := rand.N(c.params.CycleRand)
	c.mode = &probeBWState{cycleIdx: idx, cycleStamp: c.now}
	c.pacingGain = probeBWGainCycle[idx]
}

// enterProbeRTT switches to PROBE_RTT: gains drop to unit, cwnd is clamped
// to the floor by the control laws, and prior_cwnd is saved for restoration.
func (c *Conn) enterProbeRTT() {
	c.saveCwnd()
	c.mode = &probeRTTState{}
	c.pacingGain = unitGain
	c.cwndGain = unitGain
	log.Info("bbr PROBE_RTT enter", zap.Int64("min_rtt_us", c.minRTTUS))
}

// checkPipeFull runs the STARTUP pipe-full detector (§4.6) on every round
// boundary that is not app-limited.
func (c *Conn) checkPipeFull(rs RateSample) {
	if c.mode.kind() != modeStartup || c.fullBWReached || !c.roundStart || rs.IsAppLimited {
		return
	}
	bw, _ := c.bwFilter.get()
	if uint64(bw)*uint64(c.params.FullBWThreshDen) >= uint64(c.fullBW)*uint64(c.params.FullBWThreshNum) {
		c.fullBW = BW(bw)
		c.fullBWCnt = 0
		return
	}
	c.fullBWCnt++
	if c.fullBWCnt >= c.params.FullBWCnt {
		c.fullBWReached = true
		log.Debug("bbr pipe full", zap.Uint64("bw", uint64(c.fullBW)), zap.Int("full_bw_cnt", c.fullBWCnt))
		c.enterDrain()
	}
}

// checkDrainDone transitions DRAIN -> PROBE_BW once estimated in-flight has
// fallen to the BDP at unit gain (§4.5).
func (c *Conn) checkDrainDone(inFlight uint32) {
	if c.mode.kind() != modeDrain {
		return
	}
	if uint64(inFlight) <= c.targetCwndAtGain(unitGain) {
		c.enterProbeBW()
	}
}

// advanceCycle evaluates the PROBE_BW phase-advance rule (§4.5) and rotates
// to the next of the 8 phases when it holds.
func (c *Conn) advanceCycle(rs RateSample, inFlight uint32) {
	pb, ok := c.mode.(*probeBWState)
	if !ok {
		return
	}

	elapsed := c.now - pb.cycleStamp
	minRTTUS := USec(c.minRTTUS)
	if c.minRTTUS == minRTTUnknown {
		minRTTUS = 0
	}
	hasElapsedCycle := elapsed > minRTTUS

	gain := probeBWGainCycle[pb.cycleIdx]
	var advance bool
	switch {
	case gain == unitGain:
		advance = hasElapsedCycle
	case gain > unitGain:
		target := c.targetCwndAtGain(gain)
		advance = hasElapsedCycle && (rs.Losses > 0 || uint64(inFlight) >= target)
	default: // gain < unitGain
		advance = hasElapsedCycle || uint64(inFlight) <= c.targetCwndAtGain(unitGain)
	}
	if !advance {
		return
	}

	pb.cycleIdx = (pb.cycleIdx + 1) % len(probeBWGainCycle)
	pb.cycleStamp = c.now
	c.pacingGain = probeBWGainCycle[pb.cycleIdx]
}

// checkProbeRTTEntry implements the independent min_rtt-filter-expiry check
// of §4.7: entering PROBE_RTT from any non-PROBE_RTT mode when the window
// has expired and the connection isn't in the middle of an idle restart.
func (c *Conn) checkProbeRTTEntry(minRTTExpired bool) {
	if minRTTExpired && !c.idleRestart && c.mode.kind() != modeProbeRTT {
		c.enterProbeRTT()
	}
}

// updateProbeRTTLifecycle drives the PROBE_RTT exit conditions of §4.7.
func (c *Conn) updateProbeRTTLifecycle(inFlight uint32) {
	pr, ok := c.mode.(*probeRTTState)
	if !ok {
		return
	}

	if !pr.doneSet && inFlight <= c.params.CwndMinTarget {
		pr.doneStamp = c.now + USec(c.params.ProbeRTTModeMS)*1000
		pr.doneSet = true
		pr.roundDone = false
		c.nextRTTDelivered = c.delivered
		return
	}
	if pr.doneSet && !pr.roundDone && c.roundStart {
		pr.roundDone = true
	}
	if pr.doneSet && pr.roundDone && c.now > pr.doneStamp {
		c.minRTTStamp = c.nowJiffies
		c.restoreCwnd()
		log.Info("bbr PROBE_RTT exit", zap.Bool("full_bw_reached", c.fullBWReached))
		if c.fullBWReached {
			c.enterProbeBW()
		} else {
			c.enterStartup()
		}
	}
}
