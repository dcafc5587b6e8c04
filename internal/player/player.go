// Package player decodes local audio files and plays them through oto,
// exposing the played PCM to a tap.
package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/olivier-w/bubblewave/internal/logger"
)

// ErrFormatMismatch is returned when a file's rate or channel count
// differs from the output context opened by an earlier file.
var ErrFormatMismatch = errors.New("track format differs from audio output")

// Listener is told when playback starts and when it runs out.
type Listener interface {
	OnPrepared()
	OnCompletion()
}

// Tap receives every PCM16LE block handed to the audio output.
type Tap func(pcm []byte, channels int)

// countingReader tracks how many bytes were handed to oto and forwards
// them to the tap.
type countingReader struct {
	reader   io.Reader
	channels int
	mu       sync.Mutex
	pos      int64
	eof      bool
	tap      Tap
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.mu.Lock()
	cr.pos += int64(n)
	if err == io.EOF {
		cr.eof = true
	}
	tap := cr.tap
	cr.mu.Unlock()
	if tap != nil && n > 0 {
		tap(p[:n], cr.channels)
	}
	return n, err
}

func (cr *countingReader) state() (pos int64, eof bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return cr.pos, cr.eof
}

func (cr *countingReader) setTap(t Tap) {
	cr.mu.Lock()
	cr.tap = t
	cr.mu.Unlock()
}

var (
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
	otoOnce     sync.Once
	otoErr      error
)

// initOto opens the process-wide output context with the first track's
// format. Later tracks must match it.
func initOto(rate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if otoErr == nil {
			<-ready
			otoRate, otoChannels = rate, channels
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if rate != otoRate || channels != otoChannels {
		return nil, fmt.Errorf("%w: %d Hz/%d ch, output is %d Hz/%d ch",
			ErrFormatMismatch, rate, channels, otoRate, otoChannels)
	}
	return otoCtx, nil
}

// Player plays one file.
type Player struct {
	mu        sync.Mutex
	file      *os.File
	dec       audioDecoder
	counter   *countingReader
	otoPlayer *oto.Player
	duration  time.Duration
	volume    float64
	started   bool
	paused    bool
	closed    bool
	listener  Listener
}

// Open decodes path and prepares it for playback. Nothing plays until Play.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	ctx, err := initOto(dec.SampleRate(), dec.ChannelCount())
	if err != nil {
		f.Close()
		return nil, err
	}

	cr := &countingReader{reader: dec, channels: dec.ChannelCount()}
	p := &Player{
		file:     f,
		dec:      dec,
		counter:  cr,
		duration: bytesToDuration(dec.Length(), dec.SampleRate(), dec.ChannelCount()),
		volume:   0.8,
	}
	p.otoPlayer = ctx.NewPlayer(cr)
	p.otoPlayer.SetVolume(p.volume)
	return p, nil
}

func bytesToDuration(n int64, rate, channels int) time.Duration {
	perSec := int64(rate * channels * 2)
	if perSec <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(perSec) * float64(time.Second))
}

// SetListener registers l for prepared and completion events.
func (p *Player) SetListener(l Listener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// SetTap routes played PCM to t.
func (p *Player) SetTap(t Tap) { p.counter.setTap(t) }

// Play starts playback and notifies the listener. Further calls do nothing.
func (p *Player) Play() {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.otoPlayer.Play()
	l := p.listener
	p.mu.Unlock()

	if l != nil {
		l.OnPrepared()
	}
	go p.monitor()
}

func (p *Player) monitor() {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		_, eof := p.counter.state()
		finished := eof && !p.paused && p.otoPlayer.BufferedSize() == 0
		l := p.listener
		p.mu.Unlock()

		if finished {
			if err := p.otoPlayer.Err(); err != nil {
				logger.Error("player: playback error", err)
			}
			if l != nil {
				l.OnCompletion()
			}
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// TogglePause toggles between play and pause.
func (p *Player) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.closed {
		return
	}
	if p.paused {
		p.otoPlayer.Play()
	} else {
		p.otoPlayer.Pause()
	}
	p.paused = !p.paused
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Position returns how much audio has been handed to the output.
func (p *Player) Position() time.Duration {
	pos, _ := p.counter.state()
	return bytesToDuration(pos, p.dec.SampleRate(), p.dec.ChannelCount())
}

// Duration returns the track length.
func (p *Player) Duration() time.Duration { return p.duration }

// Volume returns the current volume in [0, 1].
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// AdjustVolume changes the volume by delta, clamped to [0, 1].
func (p *Player) AdjustVolume(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = max(0, min(1, p.volume+delta))
	p.otoPlayer.SetVolume(p.volume)
}

// Close stops playback and releases the file.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.otoPlayer.Pause()
	p.file.Close()
}
