package engine

import (
	"math/rand"

	"github.com/olivier-w/bubblewave/internal/config"
)

const (
	waveJitter         = 0.15
	bubbleJitter       = 0.1
	bubbleSizeMin      = 0.5
	bubbleSizeRange    = 0.8
	bubbleLoudnessGate = 0.25
	maxBubblesPerBurst = 3
	amplitudeSmoothing = 0.8
)

// Layer is one band of waves sitting on a footer, with its own bubble pool.
//
// Every bubble is always in exactly one of unused, produced or used.
// Data intake moves bubbles from unused to produced; Update merges
// produced into used and retires finished bubbles back to unused.
type Layer struct {
	waves     []*Wave
	rect      *Rectangle
	bubbles   []*Bubble
	unused    []*Bubble // FIFO
	produced  []*Bubble
	used      []*Bubble
	amplitude float64
	calmed    bool

	bubbleFromY float64
	bubbleToY   float64
	bubbleSize  float64
	randomSize  bool

	rng *rand.Rand
}

// NewLayer builds a layer occupying [fromY, toY] in NDC.
func NewLayer(cfg *config.Config, color config.RGBA, fromY, toY float64, rng *rand.Rand) *Layer {
	footerToY := fromY + cfg.FooterHeight/(cfg.FooterHeight+cfg.WaveHeight*2)*(toY-fromY)
	l := &Layer{
		rect:        newRectangle(color, -1, 1, fromY, footerToY),
		bubbleFromY: footerToY,
		bubbleToY:   toY,
		bubbleSize:  cfg.BubbleSize,
		randomSize:  cfg.RandomizeBubbleSize,
		calmed:      true,
		rng:         rng,
	}

	width := 2 / float64(cfg.WavesCount)
	points := randomPoints(rng, cfg.WavesCount, width, waveJitter)
	l.waves = make([]*Wave, cfg.WavesCount)
	for i := range l.waves {
		dir := Up
		if i%2 != 0 {
			dir = Down
		}
		l.waves[i] = NewWave(color, points[i], points[i+1], footerToY, toY, dir, rng)
	}

	l.bubbles = make([]*Bubble, cfg.BubblesPerLayer)
	for i := range l.bubbles {
		shift := rng.Float64() * bubbleJitter * randSign(rng.Intn(2) == 0)
		l.bubbles[i] = NewBubble(color, -1+rng.Float64()*2, footerToY+shift, toY, l.nextSize(), rng)
	}
	l.unused = append(make([]*Bubble, 0, len(l.bubbles)), l.bubbles...)
	l.produced = make([]*Bubble, 0, len(l.bubbles))
	l.used = make([]*Bubble, 0, len(l.bubbles))
	return l
}

// randomPoints splits [-1,1] into n segments of the given width, moving
// each inner boundary by up to shift·width. Endpoints stay at -1 and 1.
func randomPoints(rng *rand.Rand, n int, width, shift float64) []float64 {
	points := make([]float64, n+1)
	points[0] = -1
	points[n] = 1
	for i := 1; i < n; i++ {
		s := rng.Float64() * shift * width * randSign(rng.Intn(2) == 0)
		points[i] = -1 + float64(i)*width + s
	}
	return points
}

func (l *Layer) nextSize() float64 {
	size := l.bubbleSize
	if l.randomSize {
		size *= bubbleSizeMin + l.rng.Float64()*bubbleSizeRange
	}
	return size
}

// Update advances waves and bubbles by dtMs at dAngle radians per ms.
func (l *Layer) Update(dtMs, dAngle, ratioY float64) {
	d := dtMs * dAngle
	l.calmed = true
	for _, w := range l.waves {
		w.Update(d)
		l.calmed = l.calmed && w.CalmedDown()
	}

	l.used = append(l.used, l.produced...)
	l.produced = l.produced[:0]

	kept := l.used[:0]
	for _, b := range l.used {
		b.Update(dtMs, ratioY)
		if b.OffScreen() {
			l.unused = append(l.unused, b)
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(l.used); i++ {
		l.used[i] = nil
	}
	l.used = kept
}

// UpdateData feeds the latest loudness and amplitude for this layer.
func (l *Layer) UpdateData(loudness, amplitude float64) {
	for _, w := range l.waves {
		w.SetCoefficient(loudness)
	}
	if amplitude > l.amplitude {
		l.amplitude = amplitude
		if loudness > bubbleLoudnessGate {
			l.produceBubbles()
		}
		return
	}
	l.amplitude = smooth(l.amplitude, amplitude, amplitudeSmoothing)
}

func (l *Layer) produceBubbles() {
	n := l.rng.Intn(maxBubblesPerBurst)
	for i := 0; i < n; i++ {
		if len(l.unused) == 0 {
			return
		}
		b := l.unused[0]
		l.unused[0] = nil
		l.unused = l.unused[1:]

		shift := l.rng.Float64() * bubbleJitter * randSign(l.rng.Intn(2) == 0)
		b.Reset(-1+l.rng.Float64()*2, l.bubbleFromY+shift, l.bubbleToY, l.nextSize())
		l.produced = append(l.produced, b)
	}
}

// Draw emits waves, then the footer, then in-flight bubbles.
func (l *Layer) Draw(c Canvas) {
	for _, w := range l.waves {
		w.draw(c)
	}
	l.rect.draw(c)
	for _, b := range l.used {
		b.draw(c)
	}
}

// SetColor recolors every shape the layer owns, pooled bubbles included.
func (l *Layer) SetColor(c config.RGBA) {
	l.rect.setColor(c)
	for _, w := range l.waves {
		w.setColor(c)
	}
	for _, b := range l.bubbles {
		b.setColor(c)
	}
}

// CalmedDown is true when every wave was calmed at the last Update.
func (l *Layer) CalmedDown() bool { return l.calmed }

// Amplitude returns the tracked (smoothed) amplitude.
func (l *Layer) Amplitude() float64 { return l.amplitude }

// Waves returns the layer's waves.
func (l *Layer) Waves() []*Wave { return l.waves }

// Footer returns the layer's footer rectangle.
func (l *Layer) Footer() *Rectangle { return l.rect }

// Bounds returns the bubble travel range; the footer ends at from.
func (l *Layer) Bounds() (from, to float64) { return l.bubbleFromY, l.bubbleToY }

// BubbleCounts returns the sizes of the unused, produced and used sets.
func (l *Layer) BubbleCounts() (unused, produced, used int) {
	return len(l.unused), len(l.produced), len(l.used)
}
