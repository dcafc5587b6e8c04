// Package frame paces the animation: it turns wall-clock frames into
// simulation steps and decides when the render loop may go idle.
package frame

import (
	"sync"
	"time"

	"github.com/olivier-w/bubblewave/internal/engine"
)

// Interval is the nominal frame period hosts tick at.
const Interval = 16 * time.Millisecond

// Mode mirrors the two render modes of a GL surface.
type Mode int

const (
	// Continuous renders every tick.
	Continuous Mode = iota
	// WhenDirty renders only after RequestRender.
	WhenDirty
)

func (m Mode) String() string {
	if m == Continuous {
		return "continuous"
	}
	return "when-dirty"
}

// Renderer is the simulation the driver steps. *engine.Engine satisfies it.
type Renderer interface {
	OnDataReceived(dBm, amp []float64)
	Update(dt time.Duration) bool
	Draw(c engine.Canvas)
}

// Driver advances a Renderer once per frame. While calming down it feeds
// silence every frame and drops to WhenDirty once the renderer reports
// it has calmed.
type Driver struct {
	mu       sync.Mutex
	r        Renderer
	mode     Mode
	last     time.Time
	fresh    bool
	dirty    bool
	calming  bool
	pending  []func()
	listener func()
	zero     []float64
	wake     chan struct{}
}

// New returns a driver in WhenDirty mode. layers sizes the silence
// snapshot fed while calming down.
func New(r Renderer, layers int) *Driver {
	return &Driver{
		r:     r,
		mode:  WhenDirty,
		fresh: true,
		dirty: true,
		zero:  make([]float64, layers),
		wake:  make(chan struct{}, 1),
	}
}

// SetCalmDownListener registers a callback run every time a calm-down
// completes. nil clears it.
func (d *Driver) SetCalmDownListener(fn func()) {
	d.mu.Lock()
	d.listener = fn
	d.mu.Unlock()
}

// StartRendering switches to continuous rendering and cancels a pending
// calm-down. Coming out of WhenDirty, the next frame's dt is zero.
func (d *Driver) StartRendering() {
	d.mu.Lock()
	if d.mode != Continuous {
		d.fresh = true
	}
	d.mode = Continuous
	d.calming = false
	d.pending = nil
	d.mu.Unlock()
	d.signal()
}

// StopRendering switches to WhenDirty immediately and cancels a pending
// calm-down.
func (d *Driver) StopRendering() {
	d.mu.Lock()
	d.mode = WhenDirty
	d.calming = false
	d.pending = nil
	d.mu.Unlock()
}

// CalmDown keeps rendering, feeding silence each frame, until the renderer
// calms; then rendering stops and onCalm (if any) plus the registered
// listener run on the render goroutine.
func (d *Driver) CalmDown(onCalm func()) {
	d.mu.Lock()
	if d.mode != Continuous {
		d.fresh = true
	}
	d.mode = Continuous
	d.calming = true
	if onCalm != nil {
		d.pending = append(d.pending, onCalm)
	}
	d.mu.Unlock()
	d.signal()
}

// RequestRender asks for one frame in WhenDirty mode.
func (d *Driver) RequestRender() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
	d.signal()
}

// Pause forgets the frame clock so a resumed loop does not see the pause
// as one huge step.
func (d *Driver) Pause() {
	d.mu.Lock()
	d.fresh = true
	d.mu.Unlock()
}

// Resume requests a frame. The clock was already reset by Pause.
func (d *Driver) Resume() {
	d.RequestRender()
}

// Mode returns the current render mode.
func (d *Driver) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Calming reports whether a calm-down is in progress.
func (d *Driver) Calming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calming
}

// ShouldRender reports whether the host should run a frame now.
func (d *Driver) ShouldRender() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode == Continuous || d.dirty
}

// Wake is signaled whenever rendering is (re)started or requested. Hosts
// that idle in WhenDirty mode select on it.
func (d *Driver) Wake() <-chan struct{} { return d.wake }

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Frame steps and draws one frame at wall-clock time now. It returns the
// renderer's calmed-down flag.
func (d *Driver) Frame(now time.Time, c engine.Canvas) bool {
	d.mu.Lock()
	var dt time.Duration
	if !d.fresh {
		dt = now.Sub(d.last)
		if dt < 0 {
			dt = 0
		}
	}
	d.fresh = false
	d.last = now
	d.dirty = false
	calming := d.calming
	d.mu.Unlock()

	if calming {
		d.r.OnDataReceived(d.zero, d.zero)
	}
	calmed := d.r.Update(dt)
	if c != nil {
		d.r.Draw(c)
	}
	if !calming || !calmed {
		return calmed
	}

	d.mu.Lock()
	if !d.calming {
		// Data arrived or rendering was stopped while this frame ran.
		d.mu.Unlock()
		return calmed
	}
	d.calming = false
	d.mode = WhenDirty
	d.fresh = true
	done := d.pending
	d.pending = nil
	listener := d.listener
	d.mu.Unlock()

	for _, fn := range done {
		fn()
	}
	if listener != nil {
		listener()
	}
	return calmed
}
