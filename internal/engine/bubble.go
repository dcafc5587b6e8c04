package engine

import (
	"math"
	"math/rand"

	"github.com/olivier-w/bubblewave/internal/config"
)

const (
	bubbleTravelMs   = 1000.0
	bubbleDAngle     = 2 * math.Pi / bubbleTravelMs
	pointsPerCircle  = 40
	bubbleWobble     = 0.05
	bubbleTopY       = 1.0
	bubbleSpeedMin   = 0.4
	bubbleSpeedRange = 0.8
)

// Bubble is a pooled particle that rises from the footer to the top of
// the screen while wobbling sideways.
type Bubble struct {
	shape

	startX       float64
	fromY        float64
	size         float64
	speed        float64
	virtualSpeed float64
	centerY      float64
	angle        float64
	baseAlpha    float32

	rng *rand.Rand
}

// NewBubble allocates a bubble with its mesh. It starts parked at the
// bottom of the travel range.
func NewBubble(color config.RGBA, startX, fromY, toY, size float64, rng *rand.Rand) *Bubble {
	idx := fanIndices(pointsPerCircle - 1)
	idx = append(idx, 0, pointsPerCircle, 1)
	b := &Bubble{
		shape: shape{
			vertices: make([]float32, 2*(pointsPerCircle+1)),
			indices:  idx,
			color:    color,
		},
		baseAlpha: color.A,
		rng:       rng,
		angle:     rng.Float64() * 2 * math.Pi,
	}
	b.Reset(startX, fromY, toY, size)
	return b
}

// Reset re-arms the bubble for a new flight from fromY towards toY.
func (b *Bubble) Reset(startX, fromY, toY, size float64) {
	b.startX = startX
	b.fromY = fromY
	b.size = size
	b.centerY = -1
	coef := bubbleSpeedMin + b.rng.Float64()*bubbleSpeedRange
	b.speed = (toY - fromY) / bubbleTravelMs * coef
	b.virtualSpeed = 2 / bubbleTravelMs * coef
	b.color.A = b.baseAlpha
}

// Update advances the bubble by dtMs milliseconds. ratioY (width/height)
// keeps the circle round on non-square surfaces.
func (b *Bubble) Update(dtMs, ratioY float64) {
	b.angle += dtMs * bubbleDAngle
	fromX := b.startX + bubbleWobble*math.Sin(b.angle)
	toX := fromX + b.size
	b.fromY += dtMs * b.speed
	toY := b.fromY + b.size
	b.centerY += dtMs * b.virtualSpeed

	alpha := bubbleTopY - b.centerY/bubbleTopY
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	b.color.A = b.baseAlpha * float32(alpha)

	cy := normalizeGl(0, b.fromY, toY)
	b.setVertex(0, normalizeGl(0, fromX, toX), cy)
	step := 2 * math.Pi / pointsPerCircle
	for i := 1; i <= pointsPerCircle; i++ {
		a := -math.Pi + step*float64(i)
		b.setVertex(i, normalizeGl(math.Sin(a), fromX, toX), cy+math.Cos(a)*ratioY*b.size/2)
	}
}

// OffScreen reports whether the bubble has finished its flight.
func (b *Bubble) OffScreen() bool { return b.centerY > bubbleTopY }

// CenterY is the flight progress in [-1, 1+].
func (b *Bubble) CenterY() float64 { return b.centerY }

// Size returns the bubble diameter in NDC width units.
func (b *Bubble) Size() float64 { return b.size }

func (b *Bubble) setColor(c config.RGBA) {
	a := b.color.A
	if b.baseAlpha > 0 {
		a = a / b.baseAlpha * c.A
	} else {
		a = c.A
	}
	b.color = c
	b.baseAlpha = c.A
	b.color.A = a
}
