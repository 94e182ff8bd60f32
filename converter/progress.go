package converter

// ProgressFunc receives coarse completion percentages between 0 and 100
type ProgressFunc func(percent int)

// progress keeps reported values within 0..100 and never lets them go backwards
type progress struct {
	fn   ProgressFunc
	last int
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn, last: -1}
}

func (p *progress) report(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= p.last {
		return
	}
	p.last = percent
	if p.fn != nil {
		p.fn(percent)
	}
}

// advance emits every multiple of step from the last value up to target, the
// fixed schedule used where the real cost of a stage is unknown
func (p *progress) advance(target, step int) {
	next := p.last + step
	if p.last < 0 {
		next = step
	}
	for ; next < target; next += step {
		p.report(next)
	}
	p.report(target)
}

func (p *progress) done() {
	p.report(100)
}
