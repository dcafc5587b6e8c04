package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/olivier-w/bubblewave/internal/config"
)

type drawCall struct {
	vertices []float32
	indices  []uint16
	color    config.RGBA
}

type recordingCanvas struct {
	cleared int
	bg      config.RGBA
	calls   []drawCall
}

func (c *recordingCanvas) Clear(bg config.RGBA) {
	c.cleared++
	c.bg = bg
	c.calls = c.calls[:0]
}

func (c *recordingCanvas) DrawTriangles(v []float32, idx []uint16, col config.RGBA) {
	c.calls = append(c.calls, drawCall{vertices: v, indices: idx, color: col})
}

func testConfig(t *testing.T, mutate func(*config.Options)) *config.Config {
	t.Helper()
	opts := config.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	cfg, err := config.New(opts, config.Display{Width: 1080, Height: 1920})
	if err != nil {
		t.Fatalf("config.New returned error: %v", err)
	}
	return cfg
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func TestWaveCoefficientConvergesToLatest(t *testing.T) {
	for _, target := range []float64{0, 0.1, 0.5, 0.93, 1} {
		w := NewWave(config.RGBA{A: 1}, -1, 1, 0, 1, Up, newTestRand())
		w.SetCoefficient(target)
		for i := 0; i < 4000; i++ {
			w.Update(0.1)
		}
		if math.Abs(w.Coefficient()-target) > 1e-6 {
			t.Fatalf("target %v: expected coefficient to converge, got %v", target, w.Coefficient())
		}
	}
}

func TestWaveRetargetsOnlyAtZeroCrossings(t *testing.T) {
	w := NewWave(config.RGBA{A: 1}, -1, 1, 0, 1, Up, newTestRand())
	w.SetCoefficient(1)
	w.Update(0.1)
	if got := w.Coefficient(); math.Abs(got-0.35) > 1e-12 {
		t.Fatalf("expected kick-start coefficient 0.35, got %v", got)
	}
	// Still in the first positive half period: no crossing yet.
	for i := 0; i < 20; i++ {
		w.Update(0.1)
	}
	if got := w.Coefficient(); math.Abs(got-0.35) > 1e-12 {
		t.Fatalf("expected coefficient unchanged before a crossing, got %v", got)
	}
	// Cross pi.
	for i := 0; i < 15; i++ {
		w.Update(0.1)
	}
	want := 0.35*1 + 0.65*0.35
	if got := w.Coefficient(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected coefficient %v after one crossing, got %v", want, got)
	}
}

func TestWaveCalmsDownOnZeroInput(t *testing.T) {
	w := NewWave(config.RGBA{A: 1}, -1, 1, 0, 1, Down, newTestRand())
	w.SetCoefficient(0.8)
	for i := 0; i < 200; i++ {
		w.Update(0.1)
	}
	if w.CalmedDown() {
		t.Fatal("expected active wave not to be calmed down")
	}

	w.SetCoefficient(0)
	calmed := false
	for i := 0; i < 20000 && !calmed; i++ {
		w.Update(0.1)
		calmed = w.CalmedDown()
	}
	if !calmed {
		t.Fatalf("expected wave to calm down, coefficient still %v", w.Coefficient())
	}
}

func TestWaveMeshTopology(t *testing.T) {
	w := NewWave(config.RGBA{A: 1}, -0.5, 0.5, 0, 1, Up, newTestRand())
	if got := len(w.Vertices()); got != 2*45 {
		t.Fatalf("expected 45 vertices, got %d", got/2)
	}
	idx := w.Indices()
	if len(idx) != 3*43 {
		t.Fatalf("expected 43 triangles, got %d", len(idx)/3)
	}
	if idx[len(idx)-3] != 0 || idx[len(idx)-2] != 43 || idx[len(idx)-1] != 44 {
		t.Fatalf("unexpected last triangle %v", idx[len(idx)-3:])
	}

	v := w.Vertices()
	if v[0] != 0 || v[1] != 0 {
		t.Fatalf("expected center vertex at (0,0), got (%v,%v)", v[0], v[1])
	}
	if v[2] != -0.5 || v[4] != -0.5 || v[5] != 0.5 {
		t.Fatalf("unexpected left anchors (%v,%v) (%v,%v)", v[2], v[3], v[4], v[5])
	}
	if v[86] != 0.5 || v[87] != 0.5 || v[88] != 0.5 || v[89] != 0 {
		t.Fatalf("unexpected right anchors (%v,%v) (%v,%v)", v[86], v[87], v[88], v[89])
	}
	// First curve point starts at the left top anchor.
	if v[6] != v[4] || v[7] != v[5] {
		t.Fatalf("expected curve to start at left top anchor, got (%v,%v)", v[6], v[7])
	}
}

func TestBubbleMeshClosesFan(t *testing.T) {
	b := NewBubble(config.RGBA{A: 1}, 0, -0.5, 1, 0.1, newTestRand())
	if got := len(b.Vertices()); got != 2*41 {
		t.Fatalf("expected 41 vertices, got %d", got/2)
	}
	idx := b.Indices()
	if len(idx) != 3*40 {
		t.Fatalf("expected 40 triangles, got %d", len(idx)/3)
	}
	last := idx[len(idx)-3:]
	if last[0] != 0 || last[1] != 40 || last[2] != 1 {
		t.Fatalf("expected closing triangle (0,40,1), got %v", last)
	}
}

func TestBubbleFlightAndFade(t *testing.T) {
	b := NewBubble(config.RGBA{R: 1, A: 1}, 0, -0.5, 1, 0.1, newTestRand())
	if b.OffScreen() {
		t.Fatal("expected fresh bubble on screen")
	}
	b.Update(0, 1)
	if b.Color().A != 1 {
		t.Fatalf("expected alpha clamped to 1 at start, got %v", b.Color().A)
	}

	prevY := b.CenterY()
	for i := 0; i < 2600 && !b.OffScreen(); i++ {
		b.Update(1, 1)
		if b.CenterY() < prevY {
			t.Fatalf("expected monotonic rise, got %v after %v", b.CenterY(), prevY)
		}
		prevY = b.CenterY()
	}
	if !b.OffScreen() {
		t.Fatalf("expected bubble off screen after 2.6s, centerY=%v", b.CenterY())
	}
	if b.Color().A != 0 {
		t.Fatalf("expected fully faded bubble, got alpha %v", b.Color().A)
	}

	b.Reset(0, -0.5, 1, 0.1)
	if b.OffScreen() || b.Color().A != 1 {
		t.Fatalf("expected reset bubble visible with alpha 1, got offscreen=%v alpha=%v", b.OffScreen(), b.Color().A)
	}
}

func TestBubbleRingIsRoundForAspectRatio(t *testing.T) {
	b := NewBubble(config.RGBA{A: 1}, 0, 0, 1, 0.2, newTestRand())
	ratio := 1080.0 / 1920
	b.Update(0, ratio)
	v := b.Vertices()
	cx, cy := float64(v[0]), float64(v[1])
	// Ring point 20 sits at angle 0: straight up.
	top := float64(v[2*20+1]) - cy
	// Ring point 10 sits at -pi/2: leftmost.
	left := cx - float64(v[2*10])
	if math.Abs(top-0.1*ratio) > 1e-6 {
		t.Fatalf("expected vertical radius %v, got %v", 0.1*ratio, top)
	}
	if math.Abs(left-0.1) > 1e-6 {
		t.Fatalf("expected horizontal radius 0.1, got %v", left)
	}
}

func checkPartition(t *testing.T, l *Layer, total int) {
	t.Helper()
	seen := make(map[*Bubble]string, total)
	for name, set := range map[string][]*Bubble{"unused": l.unused, "produced": l.produced, "used": l.used} {
		for _, b := range set {
			if prev, ok := seen[b]; ok {
				t.Fatalf("bubble in both %s and %s", prev, name)
			}
			seen[b] = name
		}
	}
	if len(seen) != total {
		t.Fatalf("expected %d bubbles across sets, got %d", total, len(seen))
	}
}

func TestLayerBubblePartitionInvariant(t *testing.T) {
	cfg := testConfig(t, func(o *config.Options) { o.BubblesPerLayer = 10 })
	l := NewLayer(cfg, config.RGBA{A: 1}, -1, 0.5, newTestRand())
	checkPartition(t, l, 10)

	amp := 0.0
	for step := 0; step < 500; step++ {
		amp += 0.01
		l.UpdateData(0.9, amp)
		checkPartition(t, l, 10)
		l.Update(16, baseDAngle, 1)
		checkPartition(t, l, 10)
	}
}

func TestEngineBubblePartitionUnderConcurrentCaptureAndRender(t *testing.T) {
	const perLayer = 12
	cfg := testConfig(t, func(o *config.Options) { o.BubblesPerLayer = perLayer })
	e := New(cfg, newTestRand())
	e.SurfaceCreated()
	e.SurfaceChanged(1080, 1920)

	layers := e.LayerCount()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dBm := make([]float64, layers)
		amp := make([]float64, layers)
		for step := 0; ; step++ {
			select {
			case <-stop:
				return
			default:
			}
			for i := range amp {
				dBm[i] = float64(step%10) / 10
				amp[i] = float64((step+i)%50) / 50
			}
			e.OnDataReceived(dBm, amp)
		}
	}()

	var failure string
	for frame := 0; frame < 2000 && failure == ""; frame++ {
		e.Update(16 * time.Millisecond)
		for i := 0; i < layers; i++ {
			unused, produced, used := e.BubbleCounts(i)
			if unused < 0 || produced < 0 || used < 0 || unused+produced+used != perLayer {
				failure = fmt.Sprintf("frame %d layer %d: partition %d/%d/%d", frame, i, unused, produced, used)
				break
			}
		}
	}
	close(stop)
	wg.Wait()
	if failure != "" {
		t.Fatal(failure)
	}
}

func TestLayerAmplitudeSequence(t *testing.T) {
	cfg := testConfig(t, func(o *config.Options) { o.BubblesPerLayer = 10 })
	l := NewLayer(cfg, config.RGBA{A: 1}, -1, 0.5, newTestRand())

	l.UpdateData(0.3, 0.1)
	l.Update(0, baseDAngle, 1)
	_, _, usedBefore := l.BubbleCounts()

	l.UpdateData(0.3, 0.5)
	_, produced, _ := l.BubbleCounts()
	if produced < 0 || produced > 2 {
		t.Fatalf("expected 0..2 produced bubbles, got %d", produced)
	}
	l.Update(0, baseDAngle, 1)
	_, producedAfter, used := l.BubbleCounts()
	if producedAfter != 0 || used != usedBefore+produced {
		t.Fatalf("expected produced bubbles merged into used, got produced=%d used=%d", producedAfter, used)
	}

	l.UpdateData(0.3, 0.3)
	if _, p, _ := l.BubbleCounts(); p != 0 {
		t.Fatalf("expected no production on decrease, got %d", p)
	}
	if want := 0.8*0.3 + 0.2*0.5; math.Abs(l.Amplitude()-want) > 1e-12 {
		t.Fatalf("expected amplitude %v, got %v", want, l.Amplitude())
	}
}

func TestLayerQuietInputProducesNoBubbles(t *testing.T) {
	cfg := testConfig(t, nil)
	l := NewLayer(cfg, config.RGBA{A: 1}, -1, 0.5, newTestRand())
	amp := 0.0
	for i := 0; i < 100; i++ {
		amp += 1
		l.UpdateData(0.25, amp)
	}
	if _, p, _ := l.BubbleCounts(); p != 0 {
		t.Fatalf("expected loudness at the gate to produce nothing, got %d", p)
	}
}

func TestLayerPoolExhaustionIsSilent(t *testing.T) {
	cfg := testConfig(t, func(o *config.Options) { o.BubblesPerLayer = 1 })
	l := NewLayer(cfg, config.RGBA{A: 1}, -1, 0.5, newTestRand())
	amp := 0.0
	for i := 0; i < 200; i++ {
		amp += 1
		l.UpdateData(1, amp)
	}
	checkPartition(t, l, 1)
}

func TestLayerGeometry(t *testing.T) {
	cfg := testConfig(t, func(o *config.Options) {
		o.WavesCount = 5
		o.FooterHeight = 100
		o.WaveHeight = 50
	})
	l := NewLayer(cfg, config.RGBA{A: 1}, -1, 1, newTestRand())

	from, to := l.Bounds()
	wantFooter := -1 + 100.0/(100+2*50)*2
	if math.Abs(from-wantFooter) > 1e-12 || to != 1 {
		t.Fatalf("expected bubble range [%v,1], got [%v,%v]", wantFooter, from, to)
	}
	rv := l.Footer().Vertices()
	if rv[1] != float32(wantFooter) || rv[3] != -1 {
		t.Fatalf("unexpected footer y span %v..%v", rv[3], rv[1])
	}

	waves := l.Waves()
	if len(waves) != 5 {
		t.Fatalf("expected 5 waves, got %d", len(waves))
	}
	if waves[0].fromX != -1 || waves[4].toX != 1 {
		t.Fatalf("expected fixed endpoints, got %v..%v", waves[0].fromX, waves[4].toX)
	}
	width := 2.0 / 5
	for i := 1; i < 5; i++ {
		if waves[i].fromX != waves[i-1].toX {
			t.Fatalf("wave %d does not start where wave %d ends", i, i-1)
		}
		nominal := -1 + float64(i)*width
		if math.Abs(waves[i].fromX-nominal) > 0.15*width+1e-12 {
			t.Fatalf("boundary %d jittered too far: %v vs %v", i, waves[i].fromX, nominal)
		}
	}
	if waves[0].angle != 0 || waves[1].angle != math.Pi {
		t.Fatalf("expected alternating start phases, got %v and %v", waves[0].angle, waves[1].angle)
	}
}

func TestLayerBoundsPlacement(t *testing.T) {
	cfg := testConfig(t, nil)
	h := 1920.0
	layerHeight := (640 + 10) / h
	waveHeight := 10 / h * 2
	for i := 0; i < 4; i++ {
		from, to := LayerBounds(cfg, i)
		wantFrom := -1 + float64(3-i)*waveHeight*2
		if math.Abs(from-wantFrom) > 1e-12 || math.Abs(to-(wantFrom+layerHeight*2)) > 1e-12 {
			t.Fatalf("layer %d: got [%v,%v]", i, from, to)
		}
	}
}

func TestEngineDrawOrder(t *testing.T) {
	cfg := testConfig(t, func(o *config.Options) {
		o.LayersCount = 2
		o.WavesCount = 3
	})
	e := New(cfg, newTestRand())
	e.SurfaceCreated()
	e.SurfaceChanged(1080, 1920)

	e.OnDataReceived([]float64{0.9, 0.9}, []float64{5, 5})
	e.OnDataReceived([]float64{0.9, 0.9}, []float64{6, 6})
	e.Update(16 * time.Millisecond)

	var c recordingCanvas
	e.Draw(&c)
	if c.cleared != 1 || c.bg != cfg.BackgroundColor {
		t.Fatalf("expected one clear with background, got %d %+v", c.cleared, c.bg)
	}

	pos := 0
	for i := 0; i < 2; i++ {
		_, _, used := e.BubbleCounts(i)
		for w := 0; w < 3; w++ {
			if len(c.calls[pos].indices) != 3*43 {
				t.Fatalf("layer %d call %d: expected wave mesh", i, pos)
			}
			pos++
		}
		if len(c.calls[pos].indices) != 6 {
			t.Fatalf("layer %d call %d: expected footer quad", i, pos)
		}
		pos++
		for b := 0; b < used; b++ {
			if len(c.calls[pos].indices) != 3*40 {
				t.Fatalf("layer %d call %d: expected bubble mesh", i, pos)
			}
			pos++
		}
	}
	if pos != len(c.calls) {
		t.Fatalf("expected %d draw calls, got %d", pos, len(c.calls))
	}
}

func TestEngineLayerColorsAreReversed(t *testing.T) {
	cfg := testConfig(t, nil)
	e := New(cfg, newTestRand())
	e.SurfaceCreated()

	var c recordingCanvas
	e.Draw(&c)
	perLayer := cfg.WavesCount + 1
	for i := 0; i < 4; i++ {
		got := c.calls[i*perLayer].color
		if got != cfg.LayerColors[3-i] {
			t.Fatalf("layer %d: expected color %v, got %v", i, cfg.LayerColors[3-i], got)
		}
	}
}

func TestEngineSetColorsKeepsGeometry(t *testing.T) {
	cfg := testConfig(t, nil)
	e := New(cfg, newTestRand())
	e.SurfaceCreated()

	l := e.layers[0]
	waveVerts := &l.waves[0].vertices[0]
	bubbleVerts := &l.bubbles[0].vertices[0]

	red := config.RGBA{R: 1, A: 1}
	colors := []config.RGBA{red, red, red, red}
	if err := e.SetColors(config.RGBA{A: 1}, colors); err != nil {
		t.Fatalf("SetColors returned error: %v", err)
	}
	if &l.waves[0].vertices[0] != waveVerts || &l.bubbles[0].vertices[0] != bubbleVerts {
		t.Fatal("expected color update to keep vertex buffers")
	}
	if l.rect.color != red || l.waves[0].color != red {
		t.Fatalf("expected red footer and wave, got %v %v", l.rect.color, l.waves[0].color)
	}
	for i, b := range l.bubbles {
		if b.color.R != 1 || b.color.G != 0 {
			t.Fatalf("bubble %d not recolored: %v", i, b.color)
		}
	}
	if err := e.SetColors(config.RGBA{}, colors[:2]); err == nil {
		t.Fatal("expected error for too few colors")
	}
}

func TestEngineCalmsDownAfterZeroInput(t *testing.T) {
	cfg := testConfig(t, nil)
	e := New(cfg, newTestRand())
	e.SurfaceCreated()

	e.OnDataReceived([]float64{1, 0.8, 0.6, 0.4}, []float64{1, 1, 1, 1})
	for i := 0; i < 103; i++ {
		e.Update(16 * time.Millisecond)
	}
	if e.CalmedDown() {
		t.Fatal("expected animated engine not calmed")
	}

	zero := make([]float64, 4)
	calmed := false
	for i := 0; i < 5000 && !calmed; i++ {
		e.OnDataReceived(zero, zero)
		calmed = e.Update(16 * time.Millisecond)
	}
	if !calmed || !e.CalmedDown() {
		t.Fatal("expected engine to calm down on zero input")
	}
}

func TestEngineBeforeSurfaceIsInert(t *testing.T) {
	cfg := testConfig(t, nil)
	e := New(cfg, nil)
	e.OnDataReceived([]float64{1, 1, 1, 1}, []float64{1, 1, 1, 1})
	if !e.Update(-time.Second) {
		t.Fatal("expected engine without layers to report calmed")
	}
	if got := e.Loudness(nil); len(got) != 4 || got[0] != 1 {
		t.Fatalf("expected latest snapshot kept, got %v", got)
	}
	if e.LayerCount() != 0 {
		t.Fatalf("expected no layers, got %d", e.LayerCount())
	}
}
