package bbr

import "go.uber.org/zap"

var log *zap.Logger

func init() {
	var err error
	log, err = zap.NewDevelopment()
	if err != nil {
		log = zap.NewNop()
	}
}

// SetLogger overrides the package-level logger used to trace mode
// transitions, PROBE_RTT lifecycle and LT engagement. Never called on the
// per-ACK hot path above Debug level, to avoid I/O-induced pacing jitter.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// Event is a transmit-side event reported via CwndEvent (§4.12).
type Event int

// EventTxStart marks a transmit following an application-idle period.
const EventTxStart Event = 0

// Conn is the per-connection BBR control block (§3). It is not safe for
// concurrent use: all mutation happens from the transport's per-connection
// ACK-processing path, matching the single-threaded resource model of §5.
type Conn struct {
	host   Host
	params Params

	// clock cache, refreshed at the top of each Main call.
	now        USec
	nowJiffies Jiffies

	// path model (§4.3, §4.7)
	bwFilter         *windowedFilter
	minRTTUS         int64
	minRTTStamp      Jiffies
	hasSeenRTT       bool
	rttCount         int64
	nextRTTDelivered int64
	roundStart       bool
	delivered        int64

	fullBW        BW
	fullBWCnt     int
	fullBWReached bool

	// ack-aggregation estimator (§4.4)
	extraAcked        [2]uint64
	extraAckedWinIdx  int
	extraAckedWinRTTs int
	ackEpochMstamp    USec
	ackEpochAcked     uint32

	// mode (§4.5-§4.7)
	mode        modeState
	pacingGain  Gain
	cwndGain    Gain
	priorCwnd   uint32
	prevCAState CAState
	idleRestart bool

	packetConservation bool
	pacingRateBps      uint64

	lt ltEstimator
}

// Init implements the init(conn) hook of §6: resets all fields to their §3
// defaults and seeds the pacing rate from the host's current cwnd at
// high_gain, using a nominal 1ms RTT when the host has no RTT sample yet.
func Init(host Host, params Params) *Conn {
	c := &Conn{
		host:        host,
		params:      params,
		bwFilter:    newMaxFilter(bwRTTs),
		minRTTUS:    minRTTUnknown,
		prevCAState: CAOpen,
	}
	c.now = host.ClockUS()
	c.nowJiffies = host.ClockJiffies()
	c.nextRTTDelivered = host.Delivered()
	c.enterStartup()

	rtt := int64(1000) // nominal 1ms, in microseconds
	if srtt := host.SRTTUS(); srtt > 0 {
		rtt = srtt
	}
	bw := BW(uint64(host.SndCwnd()) * BWUnit / uint64(rtt))
	c.bwFilter.reset(0, uint64(bw))
	c.setPacingRate(highGain)

	log.Debug("bbr init", zap.Uint32("cwnd", host.SndCwnd()))
	return c
}

// Main implements the per-ACK control loop (§4.3-§4.9), in the fixed order
// of §2: bandwidth -> ack aggregation -> PROBE_BW cycle advance -> pipe-full
// -> drain-complete -> min_rtt/PROBE_RTT lifecycle -> gains -> pacing_rate
// -> cwnd. Samples with a non-positive interval or negative delivered count
// are dropped silently (§7): the model is not updated, mode is preserved.
func (c *Conn) Main(rs RateSample) {
	if rs.IntervalUS <= 0 || rs.Delivered < 0 {
		return
	}

	c.now = c.host.ClockUS()
	c.nowJiffies = c.host.ClockJiffies()
	c.delivered = c.host.Delivered()
	if rs.Delivered > 0 {
		c.idleRestart = false
	}

	c.updateRound(rs)
	c.updateBW(rs)
	c.updateAckAggregation(rs, c.now, c.host.SndCwnd())

	inFlight := c.host.PacketsInFlight()
	acked := uint32(0)
	if rs.AckedSacked > 0 {
		acked = uint32(rs.AckedSacked)
	}

	c.advanceCycle(rs, inFlight)
	c.checkPipeFull(rs)
	c.checkDrainDone(inFlight)

	minRTTExpired := c.updateMinRTT(rs, c.nowJiffies)
	c.checkProbeRTTEntry(minRTTExpired)
	c.updateProbeRTTLifecycle(inFlight)

	c.lt.update(c, rs)
	if c.lt.useBW && c.mode.kind() == modeProbeBW {
		c.pacingGain = unitGain
	}

	c.setPacingRate(c.pacingGain)
	target := c.targetCwnd()
	c.updateCwnd(rs, acked, target)
}

// CwndEvent implements the cwnd_event(conn, TX_START) hook of §4.12.
func (c *Conn) CwndEvent(ev Event) {
	if ev != EventTxStart || !c.host.AppLimited() {
		return
	}
	c.idleRestart = true
	c.ackEpochMstamp = c.host.ClockUS()
	c.ackEpochAcked = 0

	switch c.mode.kind() {
	case modeProbeBW:
		c.setPacingRate(unitGain)
	case modeProbeRTT:
		c.now = c.host.ClockUS()
		c.updateProbeRTTLifecycle(c.host.PacketsInFlight())
	}
}

// SetState implements the set_state(conn, new_state) hook of §6: on Loss,
// treats the RTO like end-of-round, resets STARTUP pipe-full detection, and
// feeds the LT sampler a synthetic losses=1 sample (§5).
func (c *Conn) SetState(newState CAState) {
	if newState == CALoss {
		c.prevCAState = CALoss
		c.fullBW = 0
		c.fullBWCnt = 0
		c.roundStart = true
		c.lt.update(c, RateSample{Losses: 1})
		return
	}
	c.prevCAState = newState
}

// Ssthresh implements the ssthresh(conn) hook of §6: saves cwnd and returns
// the host's current snd_cwnd. Host exposes no ssthresh accessor, so the
// host's own ssthresh value is not read; nothing here assigns one either
// (§9 Open Question: the reference `snd_ssthresh = c` is not reproduced).
func (c *Conn) Ssthresh() uint32 {
	c.saveCwnd()
	return c.host.SndCwnd()
}

// UndoCwnd implements the undo_cwnd(conn) hook of §6: clears pipe-full
// detection and LT state but, per §9, leaves full_bw_reached untouched.
func (c *Conn) UndoCwnd() uint32 {
	c.fullBW = 0
	c.fullBWCnt = 0
	c.lt.reset()
	return c.host.SndCwnd()
}

// SndbufExpand implements the sndbuf_expand(conn) hook of §6: BBR may
// slow-start even in recovery, so it asks for 3x cwnd of send buffer.
func (c *Conn) SndbufExpand() int {
	return 3
}

// TSOSegs implements the tso_segs(conn, mss) hook of §6/§4.10.
func (c *Conn) TSOSegs(mss int) uint32 {
	return c.tsoSegs(mss)
}

// TSOSegsGoal implements the tso_segs_goal(conn) hook of §6/§4.10.
func (c *Conn) TSOSegsGoal() uint32 {
	return c.tsoSegsGoal()
}

// Info is the diagnostics payload returned by GetInfo (§6).
type Info struct {
	BWBytesPerSec uint64
	MinRTTUS      int64
	PacingGain    Gain
	CwndGain      Gain
	Mode          string
}

// GetInfo implements the get_info(conn) hook of §6.
func (c *Conn) GetInfo() Info {
	return Info{
		BWBytesPerSec: bwToBytesPerSec(c.bw(), c.host.MSS(), unitGain, 0),
		MinRTTUS:      c.minRTTUS,
		PacingGain:    c.pacingGain,
		CwndGain:      c.cwndGain,
		Mode:          c.mode.kind().String(),
	}
}

// LTEngaged reports whether the long-term (policer) bandwidth estimate is
// currently substituted for the windowed-max bw filter. Not part of §6's
// get_info contract; exposed only for diagnostics consumers (internal/
// metrics, cmd/bbrsim) that need it alongside the host's own cwnd/
// pacing-rate state.
func (c *Conn) LTEngaged() bool {
	return c.lt.useBW
}

// PacingRateBps returns the pacing rate last applied to the host transport.
func (c *Conn) PacingRateBps() uint64 {
	return c.pacingRateBps
}
