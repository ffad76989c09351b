// Package bbr is a from-scratch, single-connection implementation of the
// BBR congestion-control model: a windowed bandwidth and min-RTT estimator
// feeding a four-state mode machine (STARTUP, DRAIN, PROBE_BW, PROBE_RTT)
// and a pair of control laws that derive a pacing rate and a congestion
// window on every delivery-rate sample.
//
// The package has no transport of its own. A host implements the Host
// interface (clock, cwnd accessors, delivered/lost counters, CA state) and
// drives a *Conn through Init, Main, CwndEvent and SetState as ACKs, idle
// restarts and loss-recovery transitions occur; Conn writes pacing_rate and
// cwnd back onto the host.
//
// All arithmetic is integer and fixed-point (BWUnit, GainUnit): this is
// deliberate, not an optimization, since the on-the-wire behaviour this
// package reproduces is specified bit-exact against a fixed-point reference
// implementation.
package bbr
