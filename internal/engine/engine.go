// Package engine simulates the layered wave and bubble animation.
package engine

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/olivier-w/bubblewave/internal/config"
)

const (
	wavePeriodMs  = 400.0
	baseDAngle    = 2 * math.Pi / wavePeriodMs // radians per millisecond
	depthSlowdown = 0.8
)

// Engine owns every layer. Data intake (capture side) and Update/Draw
// (render side) may run on different goroutines.
type Engine struct {
	mu     sync.Mutex
	cfg    *config.Config
	rng    *rand.Rand
	layers []*Layer
	ratioY float64
	calmed bool
	dBm    []float64
	amp    []float64
	bg     config.RGBA
	colors []config.RGBA
}

// New returns an engine for cfg. Layers are not built until SurfaceCreated.
func New(cfg *config.Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		cfg:    cfg,
		rng:    rng,
		ratioY: 1,
		calmed: true,
		dBm:    make([]float64, cfg.LayersCount),
		amp:    make([]float64, cfg.LayersCount),
		bg:     cfg.BackgroundColor,
		colors: append([]config.RGBA(nil), cfg.LayerColors...),
	}
}

// LayerBounds returns the vertical band [fromY, toY] of layer i.
// Layer 0 is the foreground layer and sits in the highest band.
func LayerBounds(cfg *config.Config, i int) (fromY, toY float64) {
	h := float64(cfg.Display.Height)
	layerHeight := (cfg.FooterHeight + cfg.WaveHeight) / h
	waveHeight := cfg.WaveHeight / h * 2
	reverseI := cfg.LayersCount - 1 - i
	fromY = -1 + float64(reverseI)*waveHeight*2
	toY = fromY + layerHeight*2
	return fromY, toY
}

// SurfaceCreated (re)builds all layers. Any in-flight state is dropped.
func (e *Engine) SurfaceCreated() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.layers = make([]*Layer, e.cfg.LayersCount)
	for i := range e.layers {
		fromY, toY := LayerBounds(e.cfg, i)
		reverseI := e.cfg.LayersCount - 1 - i
		e.layers[i] = NewLayer(e.cfg, e.colors[reverseI], fromY, toY, e.rng)
	}
	e.calmed = true
}

// SurfaceChanged records the pixel size of the drawing surface.
func (e *Engine) SurfaceChanged(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.mu.Lock()
	e.ratioY = float64(width) / float64(height)
	e.mu.Unlock()
}

// OnDataReceived hands a snapshot to every layer. The slices are copied,
// so callers may reuse them. Data arriving before SurfaceCreated is kept
// as the latest snapshot but produces no bubbles.
func (e *Engine) OnDataReceived(dBm, amp []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.dBm, dBm)
	copy(e.amp, amp)
	for i, l := range e.layers {
		if i >= len(dBm) || i >= len(amp) {
			break
		}
		l.UpdateData(dBm[i], amp[i])
	}
}

// Update advances the simulation by dt and reports whether every layer
// has calmed down. Negative dt is treated as zero.
func (e *Engine) Update(dt time.Duration) bool {
	if dt < 0 {
		dt = 0
	}
	ms := float64(dt) / float64(time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()

	calmed := true
	n := float64(len(e.layers))
	for i, l := range e.layers {
		speed := 1 - float64(i)/n*depthSlowdown
		l.Update(ms, baseDAngle*speed, e.ratioY)
		calmed = calmed && l.CalmedDown()
	}
	e.calmed = calmed
	return calmed
}

// Draw clears the canvas and draws every layer in order.
func (e *Engine) Draw(c Canvas) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c.Clear(e.bg)
	for _, l := range e.layers {
		l.Draw(c)
	}
}

// SetColors recolors the background and layers. Layer i takes
// colors[LayersCount-1-i], matching construction.
func (e *Engine) SetColors(bg config.RGBA, colors []config.RGBA) error {
	if len(colors) < e.cfg.LayersCount {
		return config.ErrNotEnoughColors
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.bg = bg
	e.colors = append(e.colors[:0], colors...)
	for i, l := range e.layers {
		l.SetColor(e.colors[len(e.layers)-1-i])
	}
	return nil
}

// CalmedDown reports the result of the last Update.
func (e *Engine) CalmedDown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calmed
}

// Loudness copies the latest loudness snapshot into dst and returns it.
func (e *Engine) Loudness(dst []float64) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(dst[:0], e.dBm...)
}

// LayerCount returns the number of built layers (zero before SurfaceCreated).
func (e *Engine) LayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.layers)
}

// BubbleCounts returns the pool partition sizes of layer i.
func (e *Engine) BubbleCounts(i int) (unused, produced, used int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.layers) {
		return 0, 0, 0
	}
	return e.layers[i].BubbleCounts()
}

// Background returns the current background color.
func (e *Engine) Background() config.RGBA {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bg
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }
