package backfill

import "time"

// Pager produces the sequence of page-start timestamps needed to cover
// [start, end) at a fixed step: start, start+step, start+2*step, ...
//
// The sequence is a pure function of its arguments, so after a crash
// the same sequence is reconstructed from the persisted watermark; no
// iterator state survives a restart. Exhaustion is reported through the
// second return value, never through an error.
type Pager struct {
	next time.Time
	end  time.Time
	step time.Duration
}

// NewPager creates a pager over [start, end) with the given step.
func NewPager(start, end time.Time, step time.Duration) *Pager {
	return &Pager{next: start, end: end, step: step}
}

// HasNext reports whether another page start remains.
func (p *Pager) HasNext() bool {
	return p.next.Before(p.end)
}

// Next returns the next page-start timestamp, or ok=false once the
// sequence is exhausted.
func (p *Pager) Next() (ts time.Time, ok bool) {
	if !p.HasNext() {
		return time.Time{}, false
	}
	ts = p.next
	p.next = p.next.Add(p.step)
	return ts, true
}
