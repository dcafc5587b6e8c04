package capture

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/olivier-w/bubblewave/internal/logger"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// CaptureSize is the number of samples per FFT snapshot. A snapshot
	// holds CaptureSize bytes.
	CaptureSize = 1024

	captureInterval = 50 * time.Millisecond

	// zeroRearm is how long a stream of silent snapshots may last before
	// the capture re-arms itself.
	zeroRearm = 500 * time.Millisecond
)

// Visualizer taps decoded playback and periodically publishes FFT
// snapshots in device layout: byte 0 is the DC real part, byte 1 the
// Nyquist real part, then interleaved int8 re/im pairs for bins
// 1..n/2-1.
type Visualizer struct {
	mu       sync.Mutex
	ring     *ringBuffer
	fft      *fourier.FFT
	samples  []float64
	coeff    []complex128
	out      []byte
	enabled  bool
	listener func([]byte)
	lastZero time.Time
	rearms   int
	now      func() time.Time

	done chan struct{}
	once sync.Once
}

// NewVisualizer starts a capture loop. It publishes nothing until enabled.
func NewVisualizer() *Visualizer {
	v := newVisualizer(CaptureSize, time.Now)
	go v.loop()
	return v
}

func newVisualizer(size int, now func() time.Time) *Visualizer {
	return &Visualizer{
		ring:    newRingBuffer(size * 4),
		fft:     fourier.NewFFT(size),
		samples: make([]float64, size),
		coeff:   make([]complex128, size/2+1),
		out:     make([]byte, size),
		now:     now,
		done:    make(chan struct{}),
	}
}

// Write feeds interleaved PCM16LE frames from playback. Channels are
// averaged to mono.
func (v *Visualizer) Write(pcm []byte, channels int) {
	if channels < 1 {
		channels = 1
	}
	frame := 2 * channels
	n := len(pcm) / frame
	if n == 0 {
		return
	}
	mono := make([]float64, n)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frame + 2*c
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		mono[i] = sum / float64(channels) / 32768
	}
	v.ring.write(mono)
}

// SetListener sets the snapshot consumer. The slice is reused between
// calls.
func (v *Visualizer) SetListener(fn func(fft []byte)) {
	v.mu.Lock()
	v.listener = fn
	v.mu.Unlock()
}

// SetEnabled turns publishing on or off. Enabling drops buffered audio so
// the first snapshot reflects what plays now.
func (v *Visualizer) SetEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if enabled {
		v.ring.clear()
		v.lastZero = time.Time{}
	}
	v.enabled = enabled
}

// Enabled reports whether snapshots are being published.
func (v *Visualizer) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// Release stops the capture loop. It is safe to call more than once.
func (v *Visualizer) Release() {
	v.once.Do(func() {
		v.SetEnabled(false)
		close(v.done)
	})
}

func (v *Visualizer) loop() {
	t := time.NewTicker(captureInterval)
	defer t.Stop()
	for {
		select {
		case <-v.done:
			return
		case <-t.C:
			v.capture()
		}
	}
}

// capture publishes one snapshot if enabled.
func (v *Visualizer) capture() {
	v.mu.Lock()
	if !v.enabled || v.listener == nil {
		v.mu.Unlock()
		return
	}
	snap := v.snapshot()
	v.trackSilence(snap)
	fn := v.listener
	v.mu.Unlock()

	fn(snap)
}

// trackSilence re-arms capture after zeroRearm of all-zero snapshots.
func (v *Visualizer) trackSilence(snap []byte) {
	silent := allZero(snap)
	now := v.now()
	switch {
	case !silent:
		v.lastZero = time.Time{}
	case v.lastZero.IsZero():
		v.lastZero = now
	case now.Sub(v.lastZero) >= zeroRearm:
		logger.Debug("visualizer: silent capture, re-arming")
		v.ring.clear()
		v.lastZero = time.Time{}
		v.rearms++
	}
}

func (v *Visualizer) snapshot() []byte {
	n := len(v.samples)
	v.ring.latest(v.samples)
	v.coeff = v.fft.Coefficients(v.coeff, v.samples)

	scale := 127 / float64(n/2)
	v.out[0] = quantize(real(v.coeff[0]) * scale)
	v.out[1] = quantize(real(v.coeff[n/2]) * scale)
	for k := 1; k < n/2; k++ {
		v.out[2*k] = quantize(real(v.coeff[k]) * scale)
		v.out[2*k+1] = quantize(imag(v.coeff[k]) * scale)
	}
	return v.out
}

func quantize(x float64) byte {
	x = math.Round(x)
	if x > 127 {
		x = 127
	} else if x < -128 {
		x = -128
	}
	return byte(int8(x))
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
