package bbr

import "go.uber.org/zap"

// ltEstimator implements the long-term (policer) bandwidth estimator (§4.8):
// detects token-bucket policing by comparing two consecutive lossy sampling
// intervals of consistent throughput, and when engaged substitutes a
// policed rate for the windowed-max bw estimate.
type ltEstimator struct {
	isSampling bool
	rttCnt     int // lt_rtt_cnt, 0-127
	useBW      bool
	bw         BW // lt_bw

	lastDelivered int64 // lt_last_delivered
	lastLost      int64 // lt_last_lost
	lastStampUS   int64 // lt_last_stamp, in the delivered_mstamp clock
}

// reset clears all LT state, per bbr_reset_lt_bw_sampling.
func (lt *ltEstimator) reset() {
	lt.bw = 0
	lt.useBW = false
	lt.isSampling = false
	lt.resetInterval(0, 0, 0)
}

// resetInterval anchors a fresh sampling interval at the host's current
// delivered/lost counters and timestamp, per bbr_reset_lt_bw_sampling_interval.
func (lt *ltEstimator) resetInterval(delivered, lost int64, stampUS int64) {
	lt.lastStampUS = stampUS
	lt.lastDelivered = delivered
	lt.lastLost = lost
	lt.rttCnt = 0
}

// update runs one rate-sample through the LT sampler (§4.8). c supplies
// mode/round state and the host delivered/lost counters; it calls back into
// c.restartProbeBWCycle when a stale engagement resets the gain cycle.
func (lt *ltEstimator) update(c *Conn, rs RateSample) {
	if lt.useBW {
		if c.mode.kind() == modeProbeBW && c.roundStart {
			lt.rttCnt++
			if lt.rttCnt >= c.params.LTBWMaxRTTs {
				log.Info("bbr LT disengage", zap.Int("rtt_cnt", lt.rttCnt))
				lt.reset()
				c.restartProbeBWCycle()
			}
		}
		return
	}

	// Wait for the first loss before sampling, to let the policer
	// exhaust its tokens before we estimate the rate it allows.
	if !lt.isSampling {
		if rs.Losses == 0 {
			return
		}
		lt.resetInterval(c.host.Delivered(), c.host.Lost(), int64(rs.DeliveredMstamp))
		lt.isSampling = true
	}

	if rs.IsAppLimited {
		lt.reset()
		return
	}
	if rs.Delivered < 0 || rs.IntervalUS <= 0 {
		return
	}

	lt.rttCnt++
	if lt.rttCnt < c.params.LTIntvlMinRTTs {
		return
	}
	if lt.rttCnt > c.params.LTIntvlMaxRTTs {
		lt.reset()
		return
	}

	// End the sampling interval only on a loss, so we estimate the rate
	// after the policer's tokens are exhausted.
	if rs.Losses == 0 {
		return
	}

	lost := c.host.Lost() - lt.lastLost
	delivered := c.host.Delivered() - lt.lastDelivered
	if delivered <= 0 || lost*c.params.LTLossThreshDen < c.params.LTLossThreshNum*delivered {
		return // loss rate below lt_loss_thresh: keep waiting
	}

	t := int64(rs.DeliveredMstamp) - lt.lastStampUS
	if t < 1 {
		return
	}
	bw := BW(uint64(delivered) * BWUnit / uint64(t))
	lt.intervalDone(c, bw, int64(rs.DeliveredMstamp))
}

// intervalDone compares a completed interval's throughput against the
// previous one and engages lt_use_bw if they agree within lt_bw_ratio or
// lt_bw_diff, per the policer-detection rationale in §4.8. stampUS is the
// completing sample's delivered_mstamp, which anchors the next interval.
func (lt *ltEstimator) intervalDone(c *Conn, bw BW, stampUS int64) {
	if lt.bw != 0 {
		var diff BW
		if bw >= lt.bw {
			diff = bw - lt.bw
		} else {
			diff = lt.bw - bw
		}
		withinRatio := int64(diff)*c.params.LTBWRatioDen <= c.params.LTBWRatioNum*int64(lt.bw)
		withinAbsolute := bwToBytesPerSec(diff, c.host.MSS(), unitGain, 0) <= c.params.LTBWDiffBps
		if withinRatio || withinAbsolute {
			lt.bw = (bw + lt.bw) / 2
			lt.useBW = true
			lt.rttCnt = 0
			c.pacingGain = unitGain
			log.Info("bbr LT engage", zap.Uint64("bw", uint64(lt.bw)))
			return
		}
	}
	lt.bw = bw
	lt.resetInterval(c.host.Delivered(), c.host.Lost(), stampUS)
}
