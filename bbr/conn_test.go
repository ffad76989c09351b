package bbr

// fakeHost is a scripted, single-connection Host double used to drive a
// *Conn deterministically in tests, matching the teacher's convention of a
// small hand-rolled fake rather than a generated mock.
type fakeHost struct {
	us     USec
	jf     Jiffies
	mss    int
	cwnd   uint32
	clamp  uint32
	inFlt  uint32
	delivd int64
	lost   int64
	srtt   int64
	ca     CAState
	maxBps uint64
	appLtd bool

	pacingRate uint64
	pacingReq  bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		mss:    1000,
		cwnd:   10,
		clamp:  4096,
		maxBps: 1 << 40,
	}
}

func (h *fakeHost) ClockUS() USec           { return h.us }
func (h *fakeHost) ClockJiffies() Jiffies   { return h.jf }
func (h *fakeHost) SndCwnd() uint32         { return h.cwnd }
func (h *fakeHost) SndCwndClamp() uint32    { return h.clamp }
func (h *fakeHost) SetCwnd(p uint32)        { h.cwnd = p }
func (h *fakeHost) SetPacingRate(r uint64)  { h.pacingRate = r }
func (h *fakeHost) RequestPacing()          { h.pacingReq = true }
func (h *fakeHost) MSS() int                { return h.mss }
func (h *fakeHost) PacketsInFlight() uint32 { return h.inFlt }
func (h *fakeHost) Delivered() int64        { return h.delivd }
func (h *fakeHost) Lost() int64             { return h.lost }
func (h *fakeHost) SRTTUS() int64           { return h.srtt }
func (h *fakeHost) CAState() CAState        { return h.ca }
func (h *fakeHost) MaxPacingRate() uint64   { return h.maxBps }
func (h *fakeHost) AppLimited() bool        { return h.appLtd }

// advance feeds n rounds of samples delivering delivered pkts each at
// intervalUS spacing and rttUS round-trip time, bumping the fake clock and
// delivered/in-flight counters to match.
func (h *fakeHost) advance(c *Conn, rounds int, delivered int64, intervalUS, rttUS int64, appLimited bool, losses int) {
	for i := 0; i < rounds; i++ {
		prior := h.delivd
		h.delivd += delivered
		h.us += USec(intervalUS)
		h.jf += Jiffies(intervalUS / 10_000) // 100 jiffies/sec fake clock
		h.inFlt = h.cwnd

		c.Main(RateSample{
			Delivered:      delivered,
			PriorDelivered: prior,
			IntervalUS:     intervalUS,
			RTTUS:          rttUS,
			Losses:         losses,
			AckedSacked:    delivered,
			PriorInFlight:  int64(h.inFlt),
			IsAppLimited:   appLimited,
		})
	}
}
