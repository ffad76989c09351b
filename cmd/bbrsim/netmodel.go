package main

import "bbrsim/bbr"

// netPreset mirrors the teacher's network-simulation command's preset
// table (good/poor/mobile/satellite/adversarial), narrowed to the three
// parameters a synthetic BBR rate-sample feed needs: the link's true
// capacity, its propagation RTT, and a steady loss rate.
type netPreset struct {
	name         string
	bandwidthBps uint64
	rttUS        int64
	lossPerRound float64
}

var netPresets = map[string]netPreset{
	"excellent":   {"excellent", 1_000_000_000 / 8, 5_000, 0},
	"good":        {"good", 100_000_000 / 8, 20_000, 0.001},
	"poor":        {"poor", 5_000_000 / 8, 80_000, 0.02},
	"mobile":      {"mobile", 20_000_000 / 8, 45_000, 0.01},
	"satellite":   {"satellite", 50_000_000 / 8, 600_000, 0.005},
	"adversarial": {"adversarial", 2_000_000 / 8, 150_000, 0.08},
}

// simHost is a synthetic bbr.Host backed by a fixed-capacity, fixed-RTT
// link model: each round delivers min(cwnd, bdp) packets, matching the
// bbr package's own fakeHost testing convention but driven by a
// configured bandwidth/RTT/loss triple instead of a hand-scripted
// sequence.
type simHost struct {
	preset netPreset
	mss    int

	us     bbr.USec
	jf     bbr.Jiffies
	cwnd   uint32
	inFlt  uint32
	delivd int64
	lost   int64

	pacingRate uint64
	appLtd     bool

	round uint64
}

func newSimHost(preset netPreset) *simHost {
	return &simHost{
		preset: preset,
		mss:    1200,
		cwnd:   10,
	}
}

func (h *simHost) ClockUS() bbr.USec         { return h.us }
func (h *simHost) ClockJiffies() bbr.Jiffies { return h.jf }
func (h *simHost) SndCwnd() uint32           { return h.cwnd }
func (h *simHost) SndCwndClamp() uint32      { return 1 << 20 }
func (h *simHost) SetCwnd(p uint32)          { h.cwnd = p }
func (h *simHost) SetPacingRate(r uint64)    { h.pacingRate = r }
func (h *simHost) RequestPacing()            {}
func (h *simHost) MSS() int                  { return h.mss }
func (h *simHost) PacketsInFlight() uint32   { return h.inFlt }
func (h *simHost) Delivered() int64          { return h.delivd }
func (h *simHost) Lost() int64               { return h.lost }
func (h *simHost) SRTTUS() int64             { return h.preset.rttUS }
func (h *simHost) CAState() bbr.CAState      { return bbr.CAOpen }
func (h *simHost) MaxPacingRate() uint64     { return h.preset.bandwidthBps * 2 }
func (h *simHost) AppLimited() bool          { return h.appLtd }

// bdpPackets returns the link's bandwidth-delay product, in packets, at
// the model's configured bandwidth and RTT.
func (h *simHost) bdpPackets() uint32 {
	bdpBytes := h.preset.bandwidthBps * uint64(h.preset.rttUS) / 1_000_000
	pkts := bdpBytes / uint64(h.mss)
	if pkts == 0 {
		pkts = 1
	}
	return uint32(pkts)
}

// step advances the model by one round-trip, delivering as many packets
// as the smaller of cwnd and the link's BDP allows, and returns the
// RateSample the round produced.
func (h *simHost) step(lossThisRound bool) bbr.RateSample {
	h.round++
	deliverable := h.cwnd
	if bdp := h.bdpPackets(); bdp < deliverable {
		deliverable = bdp
	}

	losses := 0
	if lossThisRound {
		losses = 1
		if deliverable > 1 {
			deliverable--
		}
	}

	prior := h.delivd
	h.delivd += int64(deliverable)
	h.lost += int64(losses)
	h.us += bbr.USec(h.preset.rttUS)
	h.jf += bbr.Jiffies(h.preset.rttUS / 10_000)
	h.inFlt = h.cwnd

	return bbr.RateSample{
		Delivered:      int64(deliverable),
		PriorDelivered: prior,
		IntervalUS:     h.preset.rttUS,
		RTTUS:          h.preset.rttUS,
		Losses:         losses,
		AckedSacked:    int64(deliverable),
		PriorInFlight:  int64(h.inFlt),
		IsAppLimited:   h.appLtd,
	}
}
