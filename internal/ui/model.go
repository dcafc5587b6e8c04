// Package ui is the terminal host: a Bubbletea program that drives a view
// and draws it with braille characters.
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/olivier-w/bubblewave/internal/config"
	"github.com/olivier-w/bubblewave/internal/frame"
	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/queue"
	"github.com/olivier-w/bubblewave/internal/source"
	"github.com/olivier-w/bubblewave/internal/view"
)

const noteTTL = 4 * time.Second

// looper is implemented by sources that play a queue.
type looper interface {
	CycleRepeat() queue.RepeatMode
	ToggleShuffle() bool
	AdjustVolume(delta float64) float64
}

const volumeStep = 0.05

// Model is the Bubbletea model for the terminal host.
type Model struct {
	view   *view.View
	source source.Source
	canvas *Braille
	meters meters
	loud   []float64
	preset int

	width  int
	height int
	title  string
	status string
	note   string
	noteAt time.Time

	seq       int
	fast      bool
	finishing bool
	quitting  bool
}

// New creates a model hosting v fed by src. The view's surface must
// already be created.
func New(v *view.View, src source.Source) Model {
	cfg := v.Config()
	m := Model{
		view:   v,
		source: src,
		canvas: NewBraille(60, 16),
		meters: newMeters(cfg.LayerColors, cfg.LayersCount, int(time.Second/frame.Interval)),
		title:  src.Title(),
		status: src.Status(),
		fast:   true,
	}
	v.SurfaceChanged(m.canvas.Dots())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		frameCmd(m.seq, frame.Interval),
		waitWake(m.view.Wake()),
		waitDone(m.source.Done()),
		tea.SetWindowTitle("bubblewave"),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case wakeMsg:
		cmds := []tea.Cmd{waitWake(m.view.Wake())}
		if !m.fast {
			m.seq++
			m.fast = true
			cmds = append(cmds, frameCmd(m.seq, 0))
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		return m.frame(msg.at)

	case sourceDoneMsg:
		logger.Info("ui: source finished, waiting for the animation to settle")
		m.finishing = true
		return m, nil
	}
	return m, nil
}

func (m Model) frame(now time.Time) (tea.Model, tea.Cmd) {
	m.view.Frame(now, m.canvas)
	m.loud = m.view.Loudness(m.loud)
	m.meters.update(m.loud)
	m.title = m.source.Title()
	m.status = m.source.Status()
	if m.note != "" && now.Sub(m.noteAt) > noteTTL {
		m.note = ""
	}

	rendering := m.view.Rendering()
	if m.finishing && !rendering {
		return m.quit()
	}
	m.fast = rendering || !m.meters.settled()
	interval := idleInterval
	if m.fast {
		interval = frame.Interval
	}
	return m, frameCmd(m.seq, interval)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isQuit(msg) {
		return m.quit()
	}
	switch msg.String() {
	case " ":
		if err := m.source.Toggle(); err != nil {
			logger.Error("ui: toggle failed", err)
			m.setNote(err.Error())
		}
		m.status = m.source.Status()
	case "n":
		m.source.Skip(1)
	case "p":
		m.source.Skip(-1)
	case "c":
		m.cyclePreset()
	case "r":
		if l, ok := m.source.(looper); ok {
			m.setNote("repeat " + l.CycleRepeat().String())
		}
	case "s":
		if l, ok := m.source.(looper); ok {
			if l.ToggleShuffle() {
				m.setNote("shuffle on")
			} else {
				m.setNote("shuffle off")
			}
		}
	case "+", "=", "-":
		if l, ok := m.source.(looper); ok {
			step := volumeStep
			if msg.String() == "-" {
				step = -step
			}
			m.setNote(fmt.Sprintf("volume %d%%", int(math.Round(l.AdjustVolume(step)*100))))
		}
	}
	return m, nil
}

func (m *Model) cyclePreset() {
	m.preset = (m.preset + 1) % len(config.Presets)
	p := config.Presets[m.preset]
	bg, layers, err := config.PresetColors(p)
	if err == nil {
		err = m.view.UpdateColors(bg, layers)
	}
	if err != nil {
		logger.Errorf("ui: preset %s", err, p.Name)
		m.setNote(err.Error())
		return
	}
	m.meters.setColors(layers)
	m.setNote("colors " + p.Name)
}

func (m *Model) setNote(s string) {
	m.note = s
	m.noteAt = time.Now()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.source.Close()
	m.view.Release()
	return m, tea.Sequence(tea.SetWindowTitle(""), tea.Quit)
}

// chrome is the number of lines around the canvas.
func (m Model) chrome() int {
	return 5 + len(m.meters.bars)
}

func (m *Model) resize() {
	cols := max(m.width, 10)
	rows := max(m.height-m.chrome(), 4)
	m.canvas.Resize(cols, rows)
	m.view.SurfaceChanged(m.canvas.Dots())
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	w := m.width
	if w < 30 {
		w = 60
	}

	var b strings.Builder
	b.WriteString("  " + headerStyle.Render("bubblewave") + "  " + titleStyle.Render(m.title) + "\n")
	b.WriteString(m.canvas.String() + "\n")
	b.WriteString("\n")
	b.WriteString("  " + statusStyle.Render(m.status) + "\n")
	b.WriteString(m.meters.view(w) + "\n")
	if m.note != "" {
		b.WriteString("  " + noteStyle.Render(m.note))
	}
	b.WriteString("\n")
	_, hasQueue := m.source.(looper)
	b.WriteString("  " + helpStyle.Render(helpText(hasQueue)))
	return b.String()
}
