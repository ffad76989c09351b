package bbr

// Params carries the tunables of §6 that are legitimately configurable per
// deployment (e.g. an accelerated MinRTTWinSec for test harnesses). Defaults
// returned by DefaultParams are bit-exact with the constants §6 marks as
// part of the on-the-wire observable behaviour; changing them diverges from
// interoperable BBR and should only be done for simulation/testing.
type Params struct {
	// MinTSORate is the pacing-rate threshold, in bits/s, below which
	// TSOSegs returns 1 segment instead of 2.
	MinTSORate uint64

	// MinRTTWinSec is the min_rtt filter window.
	MinRTTWinSec int64
	// ProbeRTTModeMS is the minimum time PROBE_RTT holds cwnd at the floor
	// once in-flight has reached it.
	ProbeRTTModeMS int64

	// FullBWThreshNum/Den express full_bw_thresh = 5/4.
	FullBWThreshNum int64
	FullBWThreshDen int64
	// FullBWCnt is the number of consecutive sub-threshold rounds that
	// mark the pipe full.
	FullBWCnt int

	// CycleRand bounds the initial PROBE_BW phase pick: uniform over
	// [0, CycleRand). §9's Open Question keeps this at 7 (0..6), which
	// does not exclude the 3/4-gain phase.
	CycleRand int

	// CwndMinTarget is the minimum cwnd, in packets (4 in reference BBR).
	CwndMinTarget uint32

	// LTIntvlMinRTTs / LTIntvlMaxRTTs bound lt_rtt_cnt for a valid LT
	// sampling interval.
	LTIntvlMinRTTs int
	LTIntvlMaxRTTs int
	// LTLossThreshNum/Den express lt_loss_thresh = 50/256.
	LTLossThreshNum int64
	LTLossThreshDen int64
	// LTBWRatioNum/Den express lt_bw_ratio = 1/8 (12.5%).
	LTBWRatioNum int64
	LTBWRatioDen int64
	// LTBWDiffBps is lt_bw_diff, in bytes/s.
	LTBWDiffBps uint64
	// LTBWMaxRTTs is the number of PROBE_BW rounds the LT estimate stays
	// engaged before resetting.
	LTBWMaxRTTs int

	// ExtraAckedGain is extra_acked_gain, scaled by GainUnit.
	ExtraAckedGain Gain

	// TCPInitCwnd is the initial cwnd used as the BDP fallback before
	// min_rtt_us has a real value, and as the STARTUP ramp floor.
	TCPInitCwnd uint32

	// JiffiesPerSec converts Jiffies to wall-clock seconds for the
	// min_rtt window; the host's jiffy clock resolution.
	JiffiesPerSec Jiffies
}

// DefaultParams returns the §6 bit-exact tunables.
func DefaultParams() Params {
	return Params{
		MinTSORate:      1_200_000,
		MinRTTWinSec:    10,
		ProbeRTTModeMS:  200,
		FullBWThreshNum: 5,
		FullBWThreshDen: 4,
		FullBWCnt:       3,
		CycleRand:       7,
		CwndMinTarget:   4,
		LTIntvlMinRTTs:  4,
		LTIntvlMaxRTTs:  16,
		LTLossThreshNum: 50,
		LTLossThreshDen: 256,
		LTBWRatioNum:    1,
		LTBWRatioDen:    8,
		LTBWDiffBps:     4_000 / 8, // 4 Kbit/s in bytes/s
		LTBWMaxRTTs:     48,
		ExtraAckedGain:  GainUnit,
		TCPInitCwnd:     10,
		JiffiesPerSec:   100,
	}
}
