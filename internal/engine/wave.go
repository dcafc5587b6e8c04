package engine

import (
	"math"
	"math/rand"

	"github.com/olivier-w/bubblewave/internal/config"
)

// Direction is the starting phase of a wave.
type Direction int

const (
	Up Direction = iota
	Down
)

const (
	waveSmoothing   = 0.35
	pointsPerWave   = 40
	waveAnchors     = 5 // center, left bottom, left top, right top, right bottom
	waveWobbleRange = 0.3
	calmThreshold   = 0.001
)

// Wave is one oscillating hump. Its height follows latest, but only
// re-targets at zero crossings of its sine phase.
type Wave struct {
	shape

	fromX, toX float64
	fromY, toY float64

	angle       float64
	coefficient float64
	latest      float64
	prev        float64
	offsetX     float64

	rng *rand.Rand
}

// NewWave builds a wave spanning the given rectangle in NDC.
func NewWave(color config.RGBA, fromX, toX, fromY, toY float64, dir Direction, rng *rand.Rand) *Wave {
	w := &Wave{
		shape: shape{
			vertices: make([]float32, 2*(pointsPerWave+waveAnchors)),
			indices:  fanIndices(pointsPerWave + waveAnchors - 2),
			color:    color,
		},
		fromX: fromX,
		toX:   toX,
		fromY: fromY,
		toY:   toY,
		rng:   rng,
	}
	if dir == Down {
		w.angle = math.Pi
	}

	midY := normalizeGl(0, fromY, toY)
	last := pointsPerWave + waveAnchors - 1
	w.setVertex(0, normalizeGl(0, fromX, toX), fromY)
	w.setVertex(1, fromX, fromY)
	w.setVertex(2, fromX, midY)
	w.setVertex(last-1, toX, midY)
	w.setVertex(last, toX, fromY)
	w.fillCurve(0)
	return w
}

// SetCoefficient sets the height target. It takes effect at the next zero
// crossing.
func (w *Wave) SetCoefficient(v float64) { w.latest = v }

// Coefficient returns the current smoothed height multiplier.
func (w *Wave) Coefficient() float64 { return w.coefficient }

// CalmedDown reports whether the last sampled value is negligible.
func (w *Wave) CalmedDown() bool { return math.Abs(w.prev) < calmThreshold }

// Update advances the phase by dAngle radians and rebuilds the curve.
func (w *Wave) Update(dAngle float64) {
	w.angle += dAngle
	if w.coefficient == 0 && w.latest > 0 {
		w.coefficient = smooth(0, w.latest, waveSmoothing)
	}
	val := math.Sin(w.angle) * w.coefficient
	if (w.prev > 0 && val <= 0) || (w.prev < 0 && val >= 0) {
		w.coefficient = smooth(w.coefficient, w.latest, waveSmoothing)
		w.offsetX = w.rng.Float64() * waveWobbleRange * randSign(w.rng.Intn(2) == 0)
	}
	w.prev = val
	w.fillCurve(val)
}

func (w *Wave) fillCurve(val float64) {
	ltX, ltY := float64(w.vertices[4]), float64(w.vertices[5])
	last := pointsPerWave + waveAnchors - 1
	rtX, rtY := float64(w.vertices[2*(last-1)]), float64(w.vertices[2*(last-1)+1])

	cx := normalizeGl(w.offsetX, w.fromX, w.toX)
	cy := normalizeGl(val, w.fromY, w.toY)
	step := 1.0 / pointsPerWave
	for i := 0; i < pointsPerWave; i++ {
		t := float64(i) * step
		w.setVertex(3+i, quad(t, ltX, cx, rtX), quad(t, ltY, cy, rtY))
	}
}
