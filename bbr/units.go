package bbr

// Fixed-point scales. All bandwidths are stored as pkt/µs scaled by
// BWUnit; all gains are rationals scaled by GainUnit. Do not refactor the
// multiplication order in bwToPacingRateBps or bdpFromBW below by applying
// distributive laws: the 64-bit overflow bound depends on the order as
// written.
const (
	bwScale   = 24
	gainScale = 8

	// BWUnit is 2^24, the fixed-point scale for bandwidth values
	// (pkt/µs · BWUnit).
	BWUnit = 1 << bwScale
	// GainUnit is 2^8, the fixed-point scale for gain values.
	GainUnit = 1 << gainScale

	usecPerSec = 1_000_000

	// pacingMarginPercent keeps average pacing slightly under the
	// estimated bandwidth so the bottleneck queue stays small.
	pacingMarginPercent = 1
)

// BW is a bandwidth estimate in pkt/µs, scaled by BWUnit. It is the sole
// internal representation of delivery rate; all model and control-law
// arithmetic operates on this scale.
type BW uint64

// Gain is a rational multiplier scaled by GainUnit.
type Gain uint32

// gain constants, scaled by GainUnit. highGain deliberately keeps the
// reference implementation's rounding: 2885/1000 computed by integer
// division, plus a literal +1, not a rounded 2.885 converted directly —
// this is the bias §9 calls out as required, not incidental.
const (
	highGain        Gain = GainUnit*2885/1000 + 1 // ~2/ln(2), smallest gain that doubles delivery per round
	drainGain       Gain = GainUnit * 1000 / 2885 // 1/highGain (unrounded), drains a STARTUP queue in ~1 round
	unitGain        Gain = GainUnit
	probeBWCwndGain Gain = GainUnit * 2
)

// probeBWGainCycle is the 8-phase PROBE_BW pacing-gain schedule.
var probeBWGainCycle = [8]Gain{
	GainUnit * 5 / 4,
	GainUnit * 3 / 4,
	GainUnit,
	GainUnit,
	GainUnit,
	GainUnit,
	GainUnit,
	GainUnit,
}

// mulGain returns v scaled by gain/GainUnit, i.e. v*gain/GainUnit.
func mulGain(v uint64, g Gain) uint64 {
	return v * uint64(g) / GainUnit
}

// bwToBytesPerSec converts a bandwidth estimate to bytes/second at the
// given gain, mss and margin, per spec §4.1/§8-P9. Multiplication order:
// bw, mss, gain, (USEC_PER_SEC/100), (100-margin); then a single right
// shift by bwScale+gainScale. This order is load-bearing: it keeps every
// intermediate product within 64 bits for bw up to ~2.9 Tbit/s at
// gain <= 2.89, and reproducing it out of order changes rounding.
func bwToBytesPerSec(bw BW, mss int, gain Gain, marginPercent uint64) uint64 {
	rate := uint64(bw)
	rate *= uint64(mss)
	rate *= uint64(gain)
	rate *= usecPerSec / 100
	rate *= 100 - marginPercent
	rate >>= bwScale + gainScale
	return rate
}

// bwToPacingRateBps is bwToBytesPerSec at the standard pacing margin.
func bwToPacingRateBps(bw BW, mss int, gain Gain) uint64 {
	return bwToBytesPerSec(bw, mss, gain, pacingMarginPercent)
}

// bdpFromBW returns ceil(bw * rttUS * gain / (BWUnit * GainUnit)), the
// bandwidth-delay product in packets at the given gain, per spec §4.9 step 1.
func bdpFromBW(bw BW, rttUS int64, gain Gain) uint64 {
	if rttUS <= 0 {
		return 0
	}
	num := uint64(bw) * uint64(rttUS) * uint64(gain)
	den := uint64(BWUnit) * uint64(GainUnit)
	return (num + den - 1) / den
}
