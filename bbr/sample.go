package bbr

// USec is a microsecond timestamp or duration, as provided by the host
// transport's fine-grained clock.
type USec int64

// Jiffies is a coarse timestamp, as provided by the host transport's
// low-resolution clock; used only for the 10-second min_rtt window.
type Jiffies int64

// CAState mirrors the host transport's congestion-avoidance state.
type CAState int

const (
	CAOpen CAState = iota
	CADisorder
	CACWR
	CARecovery
	CALoss
)

// RateSample is the per-ACK delivery-rate sample contract the host
// transport must supply (§6). All fields are required; a sample with a
// non-positive IntervalUS or a negative Delivered value is dropped
// silently by Main (§7) without touching mode.
type RateSample struct {
	Delivered       int64 // packets delivered over this sample's interval, not cumulative
	PriorDelivered  int64 // the connection's cumulative delivered count when the oldest newly-ACKed packet was sent
	IntervalUS      int64 // delivery interval for the sample
	RTTUS           int64 // RTT of the sample, or negative if unknown
	Losses          int
	AckedSacked     int64
	PriorInFlight   int64
	IsAppLimited    bool
	IsAckDelayed    bool
	DeliveredMstamp USec
	TCPMstamp       USec
}

// Host is the capability set a transport exposes to the core (§9): a
// small struct/interface, not a virtual dispatch table, and no global
// state. The core never calls back into the transport beyond reading
// these values and writing SetCwnd/SetPacingRate.
type Host interface {
	ClockUS() USec
	ClockJiffies() Jiffies
	SndCwnd() uint32
	SndCwndClamp() uint32
	SetCwnd(packets uint32)
	SetPacingRate(bytesPerSec uint64)
	RequestPacing()
	MSS() int
	PacketsInFlight() uint32
	Delivered() int64
	Lost() int64
	SRTTUS() int64
	CAState() CAState
	MaxPacingRate() uint64
	AppLimited() bool
}
