package engine

import "github.com/olivier-w/bubblewave/internal/config"

// Canvas receives triangle meshes in normalized device coordinates.
// Vertices are interleaved x,y pairs in [-1,1] with y pointing up.
type Canvas interface {
	Clear(bg config.RGBA)
	DrawTriangles(vertices []float32, indices []uint16, color config.RGBA)
}

// shape is a fixed-topology mesh. Vertices are rewritten in place each
// frame; indices never change after construction.
type shape struct {
	vertices []float32
	indices  []uint16
	color    config.RGBA
}

func (s *shape) draw(c Canvas) {
	c.DrawTriangles(s.vertices, s.indices, s.color)
}

func (s *shape) setColor(c config.RGBA) {
	s.color = c
}

func (s *shape) setVertex(i int, x, y float64) {
	s.vertices[2*i] = float32(x)
	s.vertices[2*i+1] = float32(y)
}

// Vertices exposes the live vertex slice, mostly for tests and hosts that
// want to inspect geometry without a Canvas.
func (s *shape) Vertices() []float32 { return s.vertices }

// Indices exposes the triangle index slice.
func (s *shape) Indices() []uint16 { return s.indices }

// Color returns the current draw color.
func (s *shape) Color() config.RGBA { return s.color }

// fanIndices returns triangle-fan indices (0, i+1, i+2) for n triangles.
func fanIndices(n int) []uint16 {
	idx := make([]uint16, 0, 3*n)
	for i := 0; i < n; i++ {
		idx = append(idx, 0, uint16(i+1), uint16(i+2))
	}
	return idx
}

// Rectangle is the solid footer of a layer.
type Rectangle struct {
	shape
}

func newRectangle(color config.RGBA, fromX, toX, fromY, toY float64) *Rectangle {
	r := &Rectangle{shape{
		vertices: make([]float32, 8),
		indices:  []uint16{0, 1, 2, 0, 2, 3},
		color:    color,
	}}
	r.setVertex(0, fromX, toY)
	r.setVertex(1, fromX, fromY)
	r.setVertex(2, toX, fromY)
	r.setVertex(3, toX, toY)
	return r
}

// normalizeGl maps v from [-1,1] onto [from,to].
func normalizeGl(v, from, to float64) float64 {
	return from + (v+1)/2*(to-from)
}

// smooth is single exponential smoothing: a·next + (1-a)·prev.
func smooth(prev, next, a float64) float64 {
	return a*next + (1-a)*prev
}

// quad evaluates a quadratic Bezier curve at t.
func quad(t, p0, p1, p2 float64) float64 {
	u := 1 - t
	return p0*u*u + p1*2*t*u + p2*t*t
}

func randSign(coin bool) float64 {
	if coin {
		return 1
	}
	return -1
}
