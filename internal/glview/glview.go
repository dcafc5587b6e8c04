// Package glview is the window host: an Ebitengine game that drives a
// view and draws its meshes with DrawTriangles.
package glview

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/olivier-w/bubblewave/internal/config"
	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/source"
	"github.com/olivier-w/bubblewave/internal/view"
)

var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

// canvas adapts an ebiten image to engine.Canvas.
type canvas struct {
	dst   *ebiten.Image
	w, h  float32
	verts []ebiten.Vertex
	opts  ebiten.DrawTrianglesOptions
}

func (c *canvas) Clear(bg config.RGBA) {
	r, g, b, a := bg.Bytes()
	c.dst.Fill(color.NRGBA{R: r, G: g, B: b, A: a})
}

func (c *canvas) DrawTriangles(vertices []float32, indices []uint16, col config.RGBA) {
	c.verts = c.verts[:0]
	for i := 0; i+1 < len(vertices); i += 2 {
		c.verts = append(c.verts, ebiten.Vertex{
			DstX:   (vertices[i] + 1) / 2 * c.w,
			DstY:   (1 - vertices[i+1]) / 2 * c.h,
			SrcX:   1,
			SrcY:   1,
			ColorR: col.R,
			ColorG: col.G,
			ColorB: col.B,
			ColorA: col.A,
		})
	}
	c.dst.DrawTriangles(c.verts, indices, whiteSubImage, &c.opts)
}

const titleRefresh = time.Second

// Game hosts one view in a window.
type Game struct {
	view      *view.View
	source    source.Source
	canvas    *canvas
	width     int
	height    int
	preset    int
	finishing bool
	titled    time.Time
}

// New returns a game hosting v fed by src.
func New(v *view.View, src source.Source) *Game {
	c := &canvas{}
	c.opts.AntiAlias = true
	return &Game{view: v, source: src, canvas: c}
}

func (g *Game) Update() error {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyQ), inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if err := g.source.Toggle(); err != nil {
			logger.Error("glview: toggle failed", err)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		g.source.Skip(1)
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		g.source.Skip(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.cyclePreset()
	case inpututil.IsKeyJustPressed(ebiten.KeyEqual), inpututil.IsKeyJustPressed(ebiten.KeyKPAdd):
		g.adjustVolume(volumeStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyMinus), inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract):
		g.adjustVolume(-volumeStep)
	}

	if done := g.source.Done(); done != nil && !g.finishing {
		select {
		case <-done:
			g.finishing = true
		default:
		}
	}
	if g.finishing && !g.view.Rendering() {
		return ebiten.Termination
	}

	if now := time.Now(); now.Sub(g.titled) >= titleRefresh {
		g.titled = now
		ebiten.SetWindowTitle(g.source.Title() + "  " + g.source.Status() + "  bubblewave")
	}
	return nil
}

const volumeStep = 0.05

func (g *Game) adjustVolume(delta float64) {
	if v, ok := g.source.(interface{ AdjustVolume(float64) float64 }); ok {
		logger.Debugf("glview: volume %.2f", v.AdjustVolume(delta))
	}
}

func (g *Game) cyclePreset() {
	g.preset = (g.preset + 1) % len(config.Presets)
	p := config.Presets[g.preset]
	bg, layers, err := config.PresetColors(p)
	if err == nil {
		err = g.view.UpdateColors(bg, layers)
	}
	if err != nil {
		logger.Errorf("glview: preset %s", err, p.Name)
	}
}

// Draw runs a frame only when the view asks for one. The screen is not
// cleared between frames, so an idle view keeps its last image.
func (g *Game) Draw(screen *ebiten.Image) {
	g.canvas.dst = screen
	g.view.Frame(time.Now(), g.canvas)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.canvas.w, g.canvas.h = float32(outsideWidth), float32(outsideHeight)
		g.view.SurfaceChanged(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

// Run opens a width x height window and blocks until it is closed or the
// source runs out. The source is closed and the view released on return.
func Run(v *view.View, src source.Source, width, height int) error {
	g := New(v, src)
	defer func() {
		src.Close()
		v.Release()
	}()

	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("bubblewave")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetScreenClearedEveryFrame(false)

	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}
