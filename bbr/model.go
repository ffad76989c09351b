package bbr

// Path-model constants (§6).
const (
	bwRTTs = 10 // bw filter window, in rounds (CYCLE_LEN+2)

	extraAckedWinRTTsMax  = 5       // ack-aggregation bonus window, in rounds
	extraAckedMaxUS       = 100_000 // bonus clamp window, 100ms
	ackEpochAckedResetCap = 1 << 20 // ack_epoch_acked cap, per §3
)

// minRTTUnknown is the sentinel "unknown" initial value for minRTTUS.
const minRTTUnknown int64 = -1

// updateRound advances round accounting on a rate sample (§4.3) and
// returns whether this sample starts a new round. next_rtt_delivered is
// armed from the connection's current cumulative delivered count, not from
// rs.Delivered: the rate sample's Delivered field is the packets delivered
// over this one interval, while PriorDelivered and next_rtt_delivered are
// both snapshots of the cumulative counter.
func (c *Conn) updateRound(rs RateSample) bool {
	if rs.PriorDelivered >= c.nextRTTDelivered {
		c.nextRTTDelivered = c.delivered
		c.rttCount++
		c.roundStart = true
		c.packetConservation = false
		return true
	}
	c.roundStart = false
	return false
}

// updateBW feeds a new bandwidth sample into the windowed-max filter,
// unless the sample is application-limited and below the current
// estimate (§4.3): such samples describe the application, not the path.
func (c *Conn) updateBW(rs RateSample) {
	if rs.IntervalUS <= 0 {
		return
	}
	bwSample := BW(uint64(rs.Delivered) * BWUnit / uint64(rs.IntervalUS))

	if cur, ok := c.bwFilter.get(); ok && rs.IsAppLimited && uint64(bwSample) < cur {
		return
	}
	c.bwFilter.update(int64(c.rttCount), uint64(bwSample))
}

// bw returns the path model's current bandwidth estimate: the LT
// estimator's policed rate when engaged, otherwise the windowed-max
// filter (§3 invariant: "bw is the sole source of path-rate truth").
func (c *Conn) bw() BW {
	if c.lt.useBW {
		return c.lt.bw
	}
	v, _ := c.bwFilter.get()
	return BW(v)
}

// updateMinRTT tracks the minimum RTT over a 10-second window (§4.7). It
// reports whether the window has just expired, which mode.go uses to
// decide PROBE_RTT entry.
func (c *Conn) updateMinRTT(rs RateSample, now Jiffies) (expired bool) {
	if rs.RTTUS < 0 {
		return c.minRTTWindowExpired(now)
	}
	c.hasSeenRTT = true
	expired = c.minRTTWindowExpired(now)
	if c.minRTTUS == minRTTUnknown || rs.RTTUS < c.minRTTUS || (expired && !rs.IsAckDelayed) {
		c.minRTTUS = rs.RTTUS
		c.minRTTStamp = now
	}
	return expired
}

func (c *Conn) minRTTWindowExpired(now Jiffies) bool {
	return now-c.minRTTStamp > Jiffies(c.params.MinRTTWinSec)*c.params.JiffiesPerSec
}

// updateAckAggregation maintains the ack-aggregation bonus estimator
// (§4.4): within an epoch, it compares packets actually acked against the
// packets the model expected at the current bandwidth, and keeps a 2-slot
// max of the excess over a 5-round window. The 2-slot window advances on
// round boundaries; the epoch itself resets independently, whenever the
// aggregation has fully drained or the 20-bit acked counter would
// overflow.
func (c *Conn) updateAckAggregation(rs RateSample, now USec, sndCwnd uint32) {
	if rs.AckedSacked <= 0 {
		return
	}

	if c.roundStart {
		c.extraAckedWinRTTs++
		if c.extraAckedWinRTTs >= extraAckedWinRTTsMax {
			c.extraAckedWinRTTs = 0
			c.extraAckedWinIdx = 1 - c.extraAckedWinIdx
			c.extraAcked[c.extraAckedWinIdx] = 0
		}
	}

	epochUS := int64(now - c.ackEpochMstamp)
	if epochUS < 0 {
		epochUS = 0
	}
	expected := uint64(c.bw()) * uint64(epochUS) / BWUnit

	if uint64(c.ackEpochAcked) <= expected ||
		uint64(c.ackEpochAcked)+uint64(rs.AckedSacked) >= ackEpochAckedResetCap {
		c.ackEpochAcked = 0
		c.ackEpochMstamp = now
		expected = 0
	}

	acked := uint64(c.ackEpochAcked) + uint64(rs.AckedSacked)
	if acked > ackEpochAckedResetCap-1 {
		acked = ackEpochAckedResetCap - 1
	}
	c.ackEpochAcked = uint32(acked)

	extra := acked - expected
	if extra > uint64(sndCwnd) {
		extra = uint64(sndCwnd)
	}
	if extra > c.extraAcked[c.extraAckedWinIdx] {
		c.extraAcked[c.extraAckedWinIdx] = extra
	}
}

// ackAggregationBonus returns the extra_acked-derived bonus added to the
// target cwnd (§4.4), clamped by bw*100ms.
func (c *Conn) ackAggregationBonus() uint64 {
	maxExtra := c.extraAcked[0]
	if c.extraAcked[1] > maxExtra {
		maxExtra = c.extraAcked[1]
	}
	bonus := mulGain(maxExtra, c.params.ExtraAckedGain)

	capUS := uint64(c.bw()) * extraAckedMaxUS / BWUnit
	if bonus > capUS {
		bonus = capUS
	}
	return bonus
}
