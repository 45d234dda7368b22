package ingest

import (
	"sync"
	"sync/atomic"
)

// ProgressSink receives import progress as a fraction in [0, 1]. Updates are
// hints: a sink may drop any of them, and completion is never signalled
// through it.
type ProgressSink interface {
	Report(fraction float64)
}

// Discard is a ProgressSink that ignores every update.
var Discard ProgressSink = discard{}

type discard struct{}

func (discard) Report(float64) {}

// ChanProgress delivers progress on a buffered channel. Reports never block:
// when the buffer is full the update is dropped. Delivered values are clamped
// to [0, 1] and never decrease.
type ChanProgress struct {
	mu     sync.Mutex
	ch     chan float64
	last   float64
	closed bool
}

// NewChanProgress returns a ChanProgress with the given buffer size.
func NewChanProgress(buffer int) *ChanProgress {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChanProgress{ch: make(chan float64, buffer)}
}

// C returns the channel updates are delivered on. It is closed by Close.
func (p *ChanProgress) C() <-chan float64 { return p.ch }

func (p *ChanProgress) Report(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	fraction = min(max(fraction, 0), 1)
	if fraction < p.last {
		return
	}
	p.last = fraction
	select {
	case p.ch <- fraction:
	default:
	}
}

// Close closes the channel. Later reports are ignored.
func (p *ChanProgress) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Scaled maps a child's [0, 1] progress onto [lo, hi] of parent.
func Scaled(parent ProgressSink, lo, hi float64) ProgressSink {
	return scaled{parent: parent, lo: lo, hi: hi}
}

type scaled struct {
	parent ProgressSink
	lo, hi float64
}

func (s scaled) Report(fraction float64) {
	s.parent.Report(s.lo + (s.hi-s.lo)*fraction)
}

// Counter turns "n of total done" counts into fractional progress. It is
// safe for concurrent use.
type Counter struct {
	sink  ProgressSink
	total int64
	done  atomic.Int64
}

// NewCounter reports to sink as Add is called, out of total units.
func NewCounter(sink ProgressSink, total int) *Counter {
	return &Counter{sink: sink, total: int64(total)}
}

// Add records n more units as done.
func (c *Counter) Add(n int) {
	done := c.done.Add(int64(n))
	if c.total <= 0 {
		return
	}
	c.sink.Report(float64(done) / float64(c.total))
}

// Set records the absolute number of units done.
func (c *Counter) Set(n int) {
	c.done.Store(int64(n))
	if c.total <= 0 {
		return
	}
	c.sink.Report(float64(n) / float64(c.total))
}
