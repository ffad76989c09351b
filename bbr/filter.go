package bbr

// windowedFilter is a three-candidate sliding-window extremum filter over
// a monotonic timestamp dimension (§4.2). It tracks either a windowed max
// (used for the bandwidth estimate, window = rounds) or a windowed min
// (used for min_rtt, window = jiffies), chosen via the better predicate.
//
// The three candidates are the best, second-best and third-best samples
// seen within the window; each insertion either finds a new extremum
// (resetting the filter to a single candidate) or demotes dominated
// candidates, so get() is always the first candidate's value.
type windowedFilter struct {
	window int64
	better func(v, of uint64) bool // true if v is at least as extreme as of
	s      [3]sample
	valid  bool
}

type sample struct {
	t int64
	v uint64
}

func newMaxFilter(window int64) *windowedFilter {
	return &windowedFilter{
		window: window,
		better: func(v, of uint64) bool { return v >= of },
	}
}

func newMinFilter(window int64) *windowedFilter {
	return &windowedFilter{
		window: window,
		better: func(v, of uint64) bool { return v <= of },
	}
}

// reset forgets all candidates and seeds the filter with a single sample.
func (f *windowedFilter) reset(t int64, v uint64) {
	s := sample{t, v}
	f.s[0], f.s[1], f.s[2] = s, s, s
	f.valid = true
}

// get returns the current extremum, or (0, false) if no sample has ever
// been fed to the filter.
func (f *windowedFilter) get() (uint64, bool) {
	if !f.valid {
		return 0, false
	}
	return f.s[0].v, true
}

// update feeds a new (timestamp, value) sample into the filter.
func (f *windowedFilter) update(t int64, v uint64) {
	if !f.valid {
		f.reset(t, v)
		return
	}
	val := sample{t, v}

	if f.better(val.v, f.s[0].v) || val.t-f.s[2].t > f.window {
		// New extremum, or the whole window has expired without one:
		// forget every earlier candidate.
		f.reset(t, v)
		return
	}

	if f.better(val.v, f.s[1].v) {
		f.s[1], f.s[2] = val, val
	} else if f.better(val.v, f.s[2].v) {
		f.s[2] = val
	}

	f.subwinUpdate(val)
}

// subwinUpdate advances stale candidates as the window slides past them,
// even when no new extremum has appeared, so the filter keeps tracking
// the best value still inside the window.
func (f *windowedFilter) subwinUpdate(val sample) {
	dt := val.t - f.s[0].t
	switch {
	case dt > f.window:
		// The whole window has passed since the best candidate: promote
		// the 2nd choice, and possibly iterate once more since the 2nd
		// choice may itself now be stale.
		f.s[0] = f.s[1]
		f.s[1] = f.s[2]
		f.s[2] = val
		if val.t-f.s[0].t > f.window {
			f.s[0] = f.s[1]
			f.s[1] = f.s[2]
			f.s[2] = val
		}
	case f.s[1].t == f.s[0].t && dt > f.window/4:
		// A quarter of the window passed without a new candidate: take a
		// 2nd choice from the 2nd quarter of the window.
		f.s[1], f.s[2] = val, val
	case f.s[2].t == f.s[1].t && dt > f.window/2:
		// Half the window passed without a new candidate: take a 3rd
		// choice from the second half of the window.
		f.s[2] = val
	}
}
