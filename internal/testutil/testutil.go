// Package testutil provides testing utilities for edgeshift tests: a
// controllable clock, a mutable device status source, and an instrumented
// processor that records call counts and execution intervals.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/errors"
)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Device is a settable device status source.
type Device struct {
	mu     sync.RWMutex
	status device.Status
}

// NewDevice creates a Device with the default status.
func NewDevice() *Device {
	return &Device{status: device.DefaultStatus()}
}

// Status returns the current status.
func (d *Device) Status() device.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Update applies fn to the status.
func (d *Device) Update(fn func(*device.Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
}

// SetConnected sets connectivity.
func (d *Device) SetConnected(connected bool) {
	d.Update(func(s *device.Status) { s.IsConnected = connected })
}

// Interval is one recorded execution.
type Interval struct {
	Start, End time.Time
}

// Processor is an instrumented processor. It sleeps for Delay, then returns
// Result, or fails while Fail is set.
type Processor struct {
	Delay  time.Duration
	Result any
	Fail   bool

	mu        sync.Mutex
	calls     int
	intervals []Interval
}

// Func is the processor function to register.
func (p *Processor) Func(ctx context.Context, payload any) (any, error) {
	start := time.Now()
	p.mu.Lock()
	p.calls++
	delay, fail, result := p.Delay, p.Fail, p.Result
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	p.intervals = append(p.intervals, Interval{Start: start, End: time.Now()})
	p.mu.Unlock()

	if fail {
		return nil, errors.New("processor failure")
	}
	if result == nil {
		return payload, nil
	}
	return result, nil
}

// SetFail switches failure mode.
func (p *Processor) SetFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Fail = fail
}

// Calls returns how many times the processor was invoked.
func (p *Processor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Intervals returns the recorded execution intervals.
func (p *Processor) Intervals() []Interval {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Interval(nil), p.intervals...)
}

// MaxOverlap returns the largest number of intervals open at the same instant.
// Touching intervals (one ends exactly when another starts) do not overlap.
func MaxOverlap(intervals []Interval) int {
	type edge struct {
		at    time.Time
		delta int
	}
	edges := make([]edge, 0, 2*len(intervals))
	for _, iv := range intervals {
		edges = append(edges, edge{iv.Start, 1}, edge{iv.End, -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	open, peak := 0, 0
	for _, e := range edges {
		open += e.delta
		peak = max(peak, open)
	}
	return peak
}
