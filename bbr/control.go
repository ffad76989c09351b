package bbr

// Segmentation-offload clamp constants for tsoSegs/tsoSegsGoal (§4.10),
// mirroring the reference GSO_LEGACY_MAX_SIZE/MAX_TCP_HEADER bounds and the
// default sk_pacing_shift of 10 (targets roughly one autosized TSO burst per
// ~1ms of pacing).
const (
	tsoPacingShift  = 10
	gsoLegacyMaxSeg = 65536
	maxTCPHeader    = 160
	maxTSOSegs      = 0x7F
)

// bdp returns the bandwidth-delay product in packets at the given gain
// (§4.9 step 1), 0 until min_rtt_us has a real value.
func (c *Conn) bdp(gain Gain) uint64 {
	if c.minRTTUS == minRTTUnknown {
		return 0
	}
	return bdpFromBW(c.bw(), c.minRTTUS, gain)
}

// targetCwndAtGain computes the full target-cwnd law of §4.9 steps 1-3 at an
// arbitrary gain; used both for the real cwnd target (at cwnd_gain) and by
// the PROBE_BW phase-advance rule, which evaluates it at the probe's own
// pacing gain (§4.5 condition ii).
func (c *Conn) targetCwndAtGain(gain Gain) uint64 {
	target := c.bdp(gain)
	if c.minRTTUS == minRTTUnknown {
		target = uint64(c.params.TCPInitCwnd)
	}

	target += c.ackAggregationBonus()

	goal := uint64(c.tsoSegsGoal())
	target += 3 * goal
	if target%2 != 0 {
		target++
	}
	if pb, ok := c.mode.(*probeBWState); ok && pb.cycleIdx == 0 {
		target += 2
	}
	return target
}

// targetCwnd is targetCwndAtGain evaluated at the mode's current cwnd_gain.
func (c *Conn) targetCwnd() uint64 {
	return c.targetCwndAtGain(c.cwndGain)
}

// updateCwnd applies the cwnd update rule of §4.9: loss deduction, recovery
// entry/exit (packet conservation and restoration), and the slow-start /
// full-pipe growth split, followed by the global and PROBE_RTT clamps.
func (c *Conn) updateCwnd(rs RateSample, acked uint32, target uint64) {
	cwnd := c.host.SndCwnd()

	if rs.Losses > 0 {
		if int64(cwnd)-int64(rs.Losses) < 1 {
			cwnd = 1
		} else {
			cwnd -= uint32(rs.Losses)
		}
	}

	state := c.host.CAState()
	switch {
	case state == CARecovery && c.prevCAState != CARecovery:
		c.packetConservation = true
		c.nextRTTDelivered = c.delivered
		cwnd = c.host.PacketsInFlight() + acked
	case c.prevCAState >= CARecovery && state < CARecovery:
		if c.priorCwnd > cwnd {
			cwnd = c.priorCwnd
		}
		c.packetConservation = false
	}
	c.prevCAState = state

	if acked > 0 {
		switch {
		case c.packetConservation:
			if v := c.host.PacketsInFlight() + acked; v > cwnd {
				cwnd = v
			}
		case c.fullBWReached:
			if cwnd+acked < uint32(target) {
				cwnd += acked
			} else {
				cwnd = uint32(target)
			}
		case cwnd < uint32(target) || c.delivered < int64(c.params.TCPInitCwnd):
			cwnd += acked
		}
	}

	if cwnd < c.params.CwndMinTarget {
		cwnd = c.params.CwndMinTarget
	}
	if clamp := c.host.SndCwndClamp(); cwnd > clamp {
		cwnd = clamp
	}
	if c.mode.kind() == modeProbeRTT && cwnd > c.params.CwndMinTarget {
		cwnd = c.params.CwndMinTarget
	}
	c.host.SetCwnd(cwnd)
}

// setPacingRate applies the §4.9 pacing-rate rule: always raise on a higher
// estimate, only lower once the pipe is known full (never walk back during
// STARTUP ramp-up), clamped to the host ceiling.
func (c *Conn) setPacingRate(gain Gain) {
	rate := bwToPacingRateBps(c.bw(), c.host.MSS(), gain)
	if ceil := c.host.MaxPacingRate(); rate > ceil {
		rate = ceil
	}
	if rate > c.pacingRateBps || c.fullBWReached || c.pacingRateBps == 0 {
		c.pacingRateBps = rate
		c.host.SetPacingRate(rate)
	}
}

// minTSOSegs returns 1 below the min_tso_rate threshold, else 2 (§4.10).
func (c *Conn) minTSOSegs() uint32 {
	if c.pacingRateBps < c.params.MinTSORate/8 {
		return 1
	}
	return 2
}

// tsoSegs returns the TSO segment-count hint for the given mss (§4.10).
func (c *Conn) tsoSegs(mss int) uint32 {
	if mss <= 0 {
		return c.minTSOSegs()
	}
	bytes := c.pacingRateBps >> tsoPacingShift
	if capBytes := uint64(gsoLegacyMaxSeg - 1 - maxTCPHeader); bytes > capBytes {
		bytes = capBytes
	}
	segs := uint32(bytes / uint64(mss))
	if minSegs := c.minTSOSegs(); segs < minSegs {
		segs = minSegs
	}
	if segs > maxTSOSegs {
		segs = maxTSOSegs
	}
	return segs
}

// tsoSegsGoal is tsoSegs evaluated at the host's own mss.
func (c *Conn) tsoSegsGoal() uint32 {
	return c.tsoSegs(c.host.MSS())
}

// saveCwnd implements §4.11: snapshot snd_cwnd before loss-recovery or
// PROBE_RTT, never regressing a value saved earlier in the same episode.
func (c *Conn) saveCwnd() {
	if c.prevCAState < CARecovery && c.mode.kind() != modeProbeRTT {
		c.priorCwnd = c.host.SndCwnd()
		return
	}
	if cur := c.host.SndCwnd(); cur > c.priorCwnd {
		c.priorCwnd = cur
	}
}

// restoreCwnd raises snd_cwnd back to the saved value, never lowering it.
func (c *Conn) restoreCwnd() {
	if cur := c.host.SndCwnd(); c.priorCwnd > cur {
		c.host.SetCwnd(c.priorCwnd)
	}
}
