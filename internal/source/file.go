package source

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/olivier-w/bubblewave/internal/capture"
	"github.com/olivier-w/bubblewave/internal/handler"
	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/player"
	"github.com/olivier-w/bubblewave/internal/queue"
)

// track is the slice of *player.Player the file source uses.
type track interface {
	SetListener(l player.Listener)
	SetTap(t player.Tap)
	Play()
	TogglePause()
	Paused() bool
	Position() time.Duration
	Duration() time.Duration
	Volume() float64
	AdjustVolume(delta float64)
	Close()
}

// fftTap receives played PCM and turns it into device-layout FFTs.
// *capture.Visualizer satisfies it.
type fftTap interface {
	handler.FFTCapture
	Write(pcm []byte, channels int)
}

// File plays a queue of local files and visualizes what is played.
type File struct {
	mu      sync.Mutex
	queue   *queue.Queue
	tap     fftTap
	handler *handler.VisualizerHandler
	open    func(path string) (track, error)
	cur     track
	meta    player.Metadata
	gen     int
	volume  float64
	done    chan struct{}
	ended   bool
	closed  bool
}

// NewFile links a visualizer handler to v and starts playing paths.
func NewFile(v Linker, paths []string, rng *rand.Rand) (*File, error) {
	open := func(path string) (track, error) { return player.Open(path) }
	return newFile(v, paths, rng, open, capture.NewVisualizer())
}

func newFile(v Linker, paths []string, rng *rand.Rand, open func(string) (track, error), tap fftTap) (*File, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no tracks to play")
	}
	f := &File{
		queue:   queue.New(paths, rng),
		tap:     tap,
		handler: handler.NewVisualizerHandler(tap),
		open:    open,
		volume:  -1,
		done:    make(chan struct{}),
	}
	v.Link(f.handler)

	f.mu.Lock()
	t := f.loadLocked()
	f.mu.Unlock()
	if t == nil {
		f.handler.Release()
		return nil, fmt.Errorf("none of %d tracks could be opened", len(paths))
	}
	t.Play()
	return f, nil
}

// loadLocked opens the current track, skipping forward past files that
// fail to open. It returns nil and marks the source ended when nothing
// is left.
func (f *File) loadLocked() track {
	for {
		path := f.queue.Current()
		t, err := f.open(path)
		if err == nil {
			f.gen++
			t.SetListener(&trackListener{f: f, gen: f.gen})
			t.SetTap(f.tap.Write)
			if f.volume < 0 {
				f.volume = t.Volume()
			} else {
				t.AdjustVolume(f.volume - t.Volume())
			}
			f.cur = t
			f.meta = player.ReadMetadata(path)
			logger.Infof("source: playing %s", path)
			return t
		}
		logger.Errorf("source: cannot open %s", err, path)
		if !f.queue.Advance() {
			f.endLocked()
			return nil
		}
	}
}

func (f *File) endLocked() {
	f.cur = nil
	if !f.ended {
		f.ended = true
		close(f.done)
	}
}

// trackListener forwards player events for one track generation.
type trackListener struct {
	f   *File
	gen int
}

func (l *trackListener) OnPrepared() { l.f.handler.OnPrepared() }

func (l *trackListener) OnCompletion() {
	l.f.handler.OnCompletion()
	l.f.trackEnded(l.gen)
}

func (f *File) trackEnded(gen int) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	old := f.cur
	var next track
	if f.queue.Finished() {
		next = f.loadLocked()
	} else {
		f.endLocked()
	}
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if next != nil {
		next.Play()
	}
}

// Skip moves delta tracks forward (positive) or back (negative).
func (f *File) Skip(delta int) {
	f.mu.Lock()
	if f.closed || f.ended || delta == 0 {
		f.mu.Unlock()
		return
	}
	var moved bool
	if delta > 0 {
		moved = f.queue.Advance()
	} else {
		moved = f.queue.Previous()
	}
	if !moved {
		f.mu.Unlock()
		return
	}
	old := f.cur
	next := f.loadLocked()
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if next != nil {
		next.Play()
	}
}

// Toggle pauses or resumes playback. Pausing lets the animation settle.
func (f *File) Toggle() error {
	f.mu.Lock()
	t := f.cur
	f.mu.Unlock()
	if t == nil {
		return nil
	}
	t.TogglePause()
	if t.Paused() {
		f.handler.OnPause()
		f.handler.CalmDownAndStopRendering()
	} else {
		f.handler.OnResume()
		f.handler.StartRendering()
	}
	return nil
}

// CycleRepeat advances the queue's repeat mode.
func (f *File) CycleRepeat() queue.RepeatMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.CycleRepeat()
}

// ToggleShuffle shuffles or unshuffles the tracks after the current one.
func (f *File) ToggleShuffle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.ToggleShuffle()
}

// AdjustVolume changes the volume by delta for this and later tracks and
// returns the new level.
func (f *File) AdjustVolume(delta float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return max(f.volume, 0)
	}
	f.cur.AdjustVolume(delta)
	f.volume = f.cur.Volume()
	return f.volume
}

func (f *File) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta.String()
}

func (f *File) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur == nil {
		return "■ finished"
	}
	icon, state := "▶", "playing"
	if f.cur.Paused() {
		icon, state = "❚❚", "paused"
	}
	s := fmt.Sprintf("%s  %s  %s / %s", icon, state,
		formatClock(f.cur.Position()), formatClock(f.cur.Duration()))
	if f.queue.Len() > 1 {
		s += fmt.Sprintf("  [%d/%d]", f.queue.Position()+1, f.queue.Len())
	}
	if icon := f.queue.Repeat().Icon(); icon != "" {
		s += "  " + icon
	}
	if f.queue.Shuffled() {
		s += "  [shuffle]"
	}
	return s
}

func (f *File) Done() <-chan struct{} { return f.done }

// Close stops playback and releases the visualizer.
func (f *File) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	t := f.cur
	f.cur = nil
	f.mu.Unlock()

	if t != nil {
		t.Close()
	}
	f.handler.Release()
}
