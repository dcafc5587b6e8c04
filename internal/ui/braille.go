package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olivier-w/bubblewave/internal/config"
)

// Braille dot positions (col, row) → bit offset:
//
//	(0,0)=0  (1,0)=3
//	(0,1)=1  (1,1)=4
//	(0,2)=2  (1,2)=5
//	(0,3)=6  (1,3)=7
var brailleBits = [2][4]uint{
	{0, 1, 2, 6},
	{3, 4, 5, 7},
}

type dot struct {
	on bool
	c  config.RGBA
}

// Braille is an engine.Canvas that rasterizes triangles into a grid of
// braille cells, each a 2x4 grid of dots.
type Braille struct {
	cols, rows int
	dots       []dot
	bg         config.RGBA
	styles     map[[2]string]lipgloss.Style
}

// NewBraille returns a canvas of cols x rows cells.
func NewBraille(cols, rows int) *Braille {
	b := &Braille{styles: make(map[[2]string]lipgloss.Style)}
	b.Resize(cols, rows)
	return b
}

// Resize changes the cell grid, clearing it.
func (b *Braille) Resize(cols, rows int) {
	b.cols, b.rows = max(cols, 1), max(rows, 1)
	b.dots = make([]dot, b.cols*2*b.rows*4)
}

// Size returns the grid in cells.
func (b *Braille) Size() (cols, rows int) { return b.cols, b.rows }

// Dots returns the grid in dots, the canvas's pixel size.
func (b *Braille) Dots() (w, h int) { return b.cols * 2, b.rows * 4 }

func (b *Braille) Clear(bg config.RGBA) {
	b.bg = bg
	for i := range b.dots {
		b.dots[i] = dot{}
	}
}

func (b *Braille) DrawTriangles(vertices []float32, indices []uint16, c config.RGBA) {
	if c.A <= 0 {
		return
	}
	w, h := b.Dots()
	px := func(i uint16) (float64, float64) {
		x, y := float64(vertices[2*i]), float64(vertices[2*i+1])
		return (x + 1) / 2 * float64(w), (1 - y) / 2 * float64(h)
	}
	for t := 0; t+2 < len(indices); t += 3 {
		x0, y0 := px(indices[t])
		x1, y1 := px(indices[t+1])
		x2, y2 := px(indices[t+2])
		b.fill(x0, y0, x1, y1, x2, y2, c)
	}
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// fill lights every dot whose center lies inside the triangle, blending c
// over what is already there by its alpha.
func (b *Braille) fill(x0, y0, x1, y1, x2, y2 float64, c config.RGBA) {
	area := edge(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	w, h := b.Dots()
	minX := max(int(min(x0, x1, x2)), 0)
	maxX := min(int(max(x0, x1, x2)), w-1)
	minY := max(int(min(y0, y1, y2)), 0)
	maxY := min(int(max(y0, y1, y2)), h-1)

	for y := minY; y <= maxY; y++ {
		cy := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			cx := float64(x) + 0.5
			e0 := edge(x1, y1, x2, y2, cx, cy)
			e1 := edge(x2, y2, x0, y0, cx, cy)
			e2 := edge(x0, y0, x1, y1, cx, cy)
			inside := e0 >= 0 && e1 >= 0 && e2 >= 0
			if area < 0 {
				inside = e0 <= 0 && e1 <= 0 && e2 <= 0
			}
			if !inside {
				continue
			}
			d := &b.dots[y*w+x]
			under := b.bg
			if d.on {
				under = d.c
			}
			d.c = blend(under, c)
			d.on = true
		}
	}
}

func blend(under, over config.RGBA) config.RGBA {
	a := over.A
	if a >= 1 {
		return over
	}
	return config.RGBA{
		R: under.R + (over.R-under.R)*a,
		G: under.G + (over.G-under.G)*a,
		B: under.B + (over.B-under.B)*a,
		A: 1,
	}
}

// cell returns the braille pattern of one cell and the mean color of its
// lit dots.
func (b *Braille) cell(col, row int) (pattern uint, lit int, c config.RGBA) {
	w, _ := b.Dots()
	var r, g, bl float32
	for dx := range 2 {
		for dy := range 4 {
			d := b.dots[(row*4+dy)*w+col*2+dx]
			if !d.on {
				continue
			}
			pattern |= 1 << brailleBits[dx][dy]
			lit++
			r, g, bl = r+d.c.R, g+d.c.G, bl+d.c.B
		}
	}
	if lit > 0 {
		n := float32(lit)
		c = config.RGBA{R: r / n, G: g / n, B: bl / n, A: 1}
	}
	return pattern, lit, c
}

// Pattern returns the braille rune of one cell.
func (b *Braille) Pattern(col, row int) rune {
	p, _, _ := b.cell(col, row)
	return rune(0x2800 + p)
}

func (b *Braille) style(fg, bg string) lipgloss.Style {
	key := [2]string{fg, bg}
	s, ok := b.styles[key]
	if !ok {
		s = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
		b.styles[key] = s
	}
	return s
}

// String renders the grid, one line per row. Runs of cells sharing
// colors are styled together. A fully lit cell takes its fill color as
// background too, so it reads as solid on color terminals.
func (b *Braille) String() string {
	bgHex := b.bg.Hex()
	rows := make([]string, b.rows)
	var line, run strings.Builder
	for row := range b.rows {
		line.Reset()
		run.Reset()
		var cur [2]string
		for col := range b.cols {
			p, lit, c := b.cell(col, row)
			key := [2]string{bgHex, bgHex}
			if lit > 0 {
				key[0] = c.Hex()
			}
			if lit == 8 {
				key[1] = key[0]
			}
			if col > 0 && key != cur {
				line.WriteString(b.style(cur[0], cur[1]).Render(run.String()))
				run.Reset()
			}
			cur = key
			if lit == 0 {
				run.WriteByte(' ')
			} else {
				run.WriteRune(rune(0x2800 + p))
			}
		}
		line.WriteString(b.style(cur[0], cur[1]).Render(run.String()))
		rows[row] = line.String()
	}
	return strings.Join(rows, "\n")
}
