// Package view hosts one visualization: it owns the engine and frame
// driver and links to at most one data handler at a time.
package view

import (
	"math/rand"
	"sync"
	"time"

	"github.com/olivier-w/bubblewave/internal/config"
	"github.com/olivier-w/bubblewave/internal/engine"
	"github.com/olivier-w/bubblewave/internal/frame"
	"github.com/olivier-w/bubblewave/internal/handler"
	"github.com/olivier-w/bubblewave/internal/logger"
)

// View is the sink handlers feed and the surface hosts draw.
type View struct {
	mu      sync.Mutex
	cfg     *config.Config
	engine  *engine.Engine
	driver  *frame.Driver
	handler handler.DataHandler
}

// New builds a view for cfg. rng may be nil.
func New(cfg *config.Config, rng *rand.Rand) *View {
	e := engine.New(cfg, rng)
	return &View{
		cfg:    cfg,
		engine: e,
		driver: frame.New(e, cfg.LayersCount),
	}
}

// Link attaches h, releasing any handler linked before.
func (v *View) Link(h handler.DataHandler) {
	v.mu.Lock()
	old := v.handler
	v.handler = h
	v.mu.Unlock()

	if old != nil && old != h {
		old.Release()
	}
	h.SetUp(v, v.cfg.LayersCount)
}

// Release releases the linked handler. It is safe to call repeatedly.
func (v *View) Release() {
	v.mu.Lock()
	h := v.handler
	v.handler = nil
	v.mu.Unlock()
	if h != nil {
		h.Release()
	}
}

// OnDataReceived implements handler.Sink.
func (v *View) OnDataReceived(dBm, amp []float64) { v.engine.OnDataReceived(dBm, amp) }

// StartRendering implements handler.Sink.
func (v *View) StartRendering() { v.driver.StartRendering() }

// StopRendering implements handler.Sink.
func (v *View) StopRendering() { v.driver.StopRendering() }

// CalmDown implements handler.Sink.
func (v *View) CalmDown(onCalm func()) { v.driver.CalmDown(onCalm) }

// SetCalmDownListener registers fn to run each time the animation settles.
func (v *View) SetCalmDownListener(fn func()) { v.driver.SetCalmDownListener(fn) }

// UpdateColors recolors the running animation and requests a frame so an
// idle view shows the change.
func (v *View) UpdateColors(bg config.RGBA, layers []config.RGBA) error {
	if err := v.engine.SetColors(bg, layers); err != nil {
		return err
	}
	logger.Debugf("view: colors updated (%d layers)", len(layers))
	v.driver.RequestRender()
	return nil
}

// SurfaceCreated builds the layers. Call again to reset the animation.
func (v *View) SurfaceCreated() {
	v.engine.SurfaceCreated()
	v.driver.RequestRender()
}

// SurfaceChanged records the surface size in pixels.
func (v *View) SurfaceChanged(width, height int) {
	v.engine.SurfaceChanged(width, height)
	v.driver.RequestRender()
}

// OnResume restarts frame timing and resumes the handler's capture.
func (v *View) OnResume() {
	v.driver.Resume()
	if h := v.linked(); h != nil {
		h.OnResume()
	}
}

// OnPause pauses the handler's capture and freezes frame timing.
func (v *View) OnPause() {
	if h := v.linked(); h != nil {
		h.OnPause()
	}
	v.driver.Pause()
}

// Frame runs one frame if the driver wants one. It reports whether a
// frame was drawn.
func (v *View) Frame(now time.Time, c engine.Canvas) bool {
	if !v.driver.ShouldRender() {
		return false
	}
	v.driver.Frame(now, c)
	return true
}

// Wake is signaled when an idle view needs frames again.
func (v *View) Wake() <-chan struct{} { return v.driver.Wake() }

// Rendering reports whether the driver renders continuously.
func (v *View) Rendering() bool { return v.driver.Mode() == frame.Continuous }

// Loudness copies the latest per-layer loudness into dst.
func (v *View) Loudness(dst []float64) []float64 { return v.engine.Loudness(dst) }

// Config returns the view's configuration.
func (v *View) Config() *config.Config { return v.cfg }

func (v *View) linked() handler.DataHandler {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handler
}
