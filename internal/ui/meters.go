package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/harmonica"
	"github.com/olivier-w/bubblewave/internal/config"
)

type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}

// settled reports whether every spring has come to rest near its target.
func (s *springField) settled(targets []float64) bool {
	for i, p := range s.pos {
		if math.Abs(p-targets[i]) > 0.005 || math.Abs(s.vel[i]) > 0.005 {
			return false
		}
	}
	return true
}

// meters shows per-layer loudness as progress bars whose levels follow
// the input through springs.
type meters struct {
	bars    []progress.Model
	springs springField
	levels  []float64
	targets []float64
}

func newMeters(layerColors []config.RGBA, layers, fps int) meters {
	m := meters{springs: newSpringField(fps, 8, 0.7)}
	m.springs.resize(layers)
	m.levels = make([]float64, layers)
	m.targets = make([]float64, layers)
	m.bars = make([]progress.Model, layers)
	m.setColors(layerColors)
	return m
}

// setColors colors meter i like layer i. Layer i draws
// layerColors[layers-1-i].
func (m *meters) setColors(layerColors []config.RGBA) {
	n := len(m.bars)
	for i := range m.bars {
		hex := layerColors[n-1-i].Hex()
		m.bars[i] = progress.New(progress.WithSolidFill(hex), progress.WithoutPercentage())
	}
}

func (m *meters) update(loudness []float64) {
	for i := range m.levels {
		var target float64
		if i < len(loudness) {
			target = loudness[i]
		}
		m.targets[i] = target
		m.levels[i] = clamp01(m.springs.step(i, target))
	}
}

func (m *meters) settled() bool { return m.springs.settled(m.targets) }

func (m *meters) view(width int) string {
	barWidth := max(width-10, 10)
	lines := make([]string, len(m.bars))
	for i, bar := range m.bars {
		bar.Width = barWidth
		label := meterStyle.Render(fmt.Sprintf("L%d ", i+1))
		lines[i] = "  " + label + bar.ViewAs(m.levels[i])
	}
	return strings.Join(lines, "\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
