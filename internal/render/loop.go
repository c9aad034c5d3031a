// SPDX-License-Identifier: MIT

// Package render drives the band pipeline on a fixed cadence and hands each
// vector to a display.
//
// A Loop moves through Uninitialized → Calibrating → Running → Stopped. The
// first vector fixes the session's amplitude ceiling; every later tick pulls
// exactly one vector. Ticks never overlap: the next one is scheduled one
// interval after the previous one started, or immediately if it overran.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	applog "barviz/internal/log"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 50 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by Run on a loop that has already started.
	ErrAlreadyRunning = errors.New("render: loop already running")

	// ErrStopped is returned by Run on a loop that has been stopped.
	ErrStopped = errors.New("render: loop stopped")
)

// State is the lifecycle position of a Loop.
type State int32

const (
	Uninitialized State = iota
	Calibrating
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Calibrating:
		return "calibrating"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Pipeline produces one band vector per call. If it also implements
// io.Closer it is closed once the loop stops.
type Pipeline interface {
	Next() ([]float64, error)
}

// Display consumes the loop's output. Init is called once with the first
// vector and the calibration, Update once per later tick and Fail at most
// once when the session ends on an error. Vectors must be treated as
// read-only.
type Display interface {
	Init(bands []float64, cal Calibration) error
	Update(bands []float64) error
	Fail(err error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d <= 0 {
			applog.Warnf("Render: Invalid interval %s, keeping %s", d, l.interval)
			return
		}
		l.interval = d
	}
}

// WithHeadroom sets the factor applied to the first vector's peak.
// Non-positive values are ignored.
func WithHeadroom(h float64) Option {
	return func(l *Loop) {
		if h <= 0 {
			applog.Warnf("Render: Invalid headroom %g, keeping %g", h, l.headroom)
			return
		}
		l.headroom = h
	}
}

// WithFloor sets the ceiling used when the first vector is silent.
// Non-positive values are ignored.
func WithFloor(f float64) Option {
	return func(l *Loop) {
		if f <= 0 {
			applog.Warnf("Render: Invalid floor %g, keeping %g", f, l.floor)
			return
		}
		l.floor = f
	}
}

// Loop is the render-synchronization loop. The pipeline is only ever called
// from the goroutine executing Run, so it needs no locking of its own.
type Loop struct {
	pipeline Pipeline
	display  Display
	interval time.Duration
	headroom float64
	floor    float64

	state atomic.Int32
	ticks atomic.Uint64

	mu      sync.Mutex // Protects current and cal
	current []float64
	cal     Calibration

	doneChan    chan struct{} // Closed by Stop
	finished    chan struct{} // Closed once the loop has released its pipeline
	stopOnce    sync.Once
	releaseOnce sync.Once
}

// New creates a loop in the Uninitialized state.
func New(pipeline Pipeline, display Display, opts ...Option) (*Loop, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("render: pipeline cannot be nil")
	}
	if display == nil {
		return nil, fmt.Errorf("render: display cannot be nil")
	}

	l := &Loop{
		pipeline: pipeline,
		display:  display,
		interval: DefaultInterval,
		headroom: DefaultHeadroom,
		floor:    DefaultFloor,
		doneChan: make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run calibrates and then ticks until ctx is cancelled, Stop is called, the
// pipeline reports io.EOF, or a tick fails. The first three end the session
// with a nil error. A failure is passed to Display.Fail and returned.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Uninitialized), int32(Calibrating)) {
		if l.State() == Stopped {
			return ErrStopped
		}
		return ErrAlreadyRunning
	}
	defer l.release()

	if ctx.Err() != nil || l.stopping() {
		return nil
	}

	if err := l.calibrate(); err != nil {
		return l.fail(err)
	}
	l.state.Store(int32(Running))

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			applog.Debugf("Render: Context done after %d ticks", l.Ticks())
			return nil
		case <-l.doneChan:
			applog.Debugf("Render: Stop requested after %d ticks", l.Ticks())
			return nil
		case <-timer.C:
		}
		// A stop or cancellation that raced with the timer wins.
		if ctx.Err() != nil || l.stopping() {
			return nil
		}

		started := time.Now()
		if err := l.tick(); err != nil {
			return l.fail(err)
		}

		wait := l.interval - time.Since(started)
		if wait < 0 {
			applog.Debugf("Render: Tick overran interval by %s", -wait)
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Start runs the loop on its own goroutine. The returned channel receives
// Run's result and is then closed.
func (l *Loop) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		errc <- l.Run(ctx)
	}()
	return errc
}

// Stop ends the session. It waits for an in-flight tick to finish and for
// the pipeline to be released. Safe to call more than once and before Run.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		applog.Infof("Render: Initiating stop sequence...")
		close(l.doneChan)
	})
	if l.state.CompareAndSwap(int32(Uninitialized), int32(Stopped)) {
		l.release()
	}
	<-l.finished
}

// Done is closed once the loop has stopped and released its pipeline.
func (l *Loop) Done() <-chan struct{} { return l.finished }

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Ticks returns the number of vectors delivered so far, calibration included.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Interval returns the configured tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Current returns a copy of the most recently delivered vector, or nil
// before calibration.
func (l *Loop) Current() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.current)
}

// Calibration returns the session calibration. It is the zero value until
// the loop has calibrated.
func (l *Loop) Calibration() Calibration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cal
}

func (l *Loop) calibrate() error {
	first, err := l.pipeline.Next()
	if err != nil {
		return err
	}

	cal := Calibrate(first, l.headroom, l.floor)
	l.mu.Lock()
	l.current = first
	l.cal = cal
	l.mu.Unlock()

	if cal.Fallback {
		applog.Warnf("Render: First vector is silent, using fallback max height %g", cal.MaxHeight)
	} else {
		applog.Infof("Render: Calibrated (Peak: %.4g, Max Height: %.4g, Bands: %d)", cal.Peak, cal.MaxHeight, len(first))
	}

	if err := l.display.Init(first, cal); err != nil {
		return fmt.Errorf("render: display init: %w", err)
	}
	l.ticks.Add(1)
	return nil
}

func (l *Loop) tick() error {
	bands, err := l.pipeline.Next()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.current = bands
	l.mu.Unlock()

	if err := l.display.Update(bands); err != nil {
		return fmt.Errorf("render: display update: %w", err)
	}
	l.ticks.Add(1)
	return nil
}

// fail ends the session. io.EOF from a non-looping source is a normal end.
func (l *Loop) fail(err error) error {
	if errors.Is(err, io.EOF) {
		applog.Infof("Render: Source exhausted after %d ticks", l.Ticks())
		return nil
	}
	err = fmt.Errorf("render: tick %d: %w", l.Ticks()+1, err)
	applog.Errorf("Render: Stopping on failure: %v", err)
	l.display.Fail(err)
	return err
}

func (l *Loop) stopping() bool {
	select {
	case <-l.doneChan:
		return true
	default:
		return false
	}
}

func (l *Loop) release() {
	l.releaseOnce.Do(func() {
		l.state.Store(int32(Stopped))
		if c, ok := l.pipeline.(io.Closer); ok {
			if err := c.Close(); err != nil {
				applog.Warnf("Render: Error releasing pipeline: %v", err)
			}
		}
		applog.Infof("Render: Stopped after %d ticks", l.Ticks())
		close(l.finished)
	})
}
