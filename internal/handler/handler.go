// Package handler turns raw capture data into per-layer loudness and
// amplitude snapshots and drives the render side with them.
package handler

import (
	"sync"

	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/spectrum"
)

// Sink receives converted snapshots and render commands. The view
// implements it.
type Sink interface {
	OnDataReceived(dBm, amp []float64)
	StartRendering()
	StopRendering()
	CalmDown(onCalm func())
}

// DataHandler is what a view links to.
type DataHandler interface {
	SetUp(sink Sink, layers int)
	OnResume()
	OnPause()
	Release()
}

// Converter fills dBm and amp (both of layer-count length) from one
// capture snapshot.
type Converter[T any] interface {
	Convert(data T, dBm, amp []float64)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc[T any] func(data T, dBm, amp []float64)

func (f ConverterFunc[T]) Convert(data T, dBm, amp []float64) { f(data, dBm, amp) }

// Spectral converts device FFT snapshots.
func Spectral(p spectrum.Policy) Converter[[]byte] {
	return ConverterFunc[[]byte](spectrum.New(p).DeviceFFT)
}

// PCM converts 16-bit little-endian mono PCM buffers.
func PCM(p spectrum.Policy) Converter[[]byte] {
	return ConverterFunc[[]byte](spectrum.New(p).PCM)
}

// RMS converts RMS dB levels normalized over [lo, hi].
func RMS(lo, hi float64) Converter[float64] {
	return ConverterFunc[float64](func(v float64, dBm, amp []float64) {
		spectrum.RMS(v, lo, hi, dBm, amp)
	})
}

// Handler is the shared skeleton every capture source builds on. The
// Converter decides how data becomes a snapshot; everything else (buffer
// ownership, release, render control) lives here.
//
// The dBm and amp slices handed to the sink are owned by the handler and
// overwritten on the next call; sinks must copy what they keep.
type Handler[T any] struct {
	mu       sync.Mutex
	conv     Converter[T]
	sink     Sink
	dBm      []float64
	amp      []float64
	released bool
}

// New returns a handler using conv. It does nothing until SetUp links it
// to a sink.
func New[T any](conv Converter[T]) *Handler[T] {
	return &Handler[T]{conv: conv}
}

// SetUp links the handler to sink and sizes its buffers for layers.
func (h *Handler[T]) SetUp(sink Sink, layers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.sink = sink
	h.dBm = make([]float64, layers)
	h.amp = make([]float64, layers)
}

// OnDataReceived converts data, forwards the snapshot and starts
// rendering. It is a no-op before SetUp and after Release.
func (h *Handler[T]) OnDataReceived(data T) {
	h.mu.Lock()
	if h.released || h.sink == nil {
		h.mu.Unlock()
		return
	}
	sink := h.sink
	h.conv.Convert(data, h.dBm, h.amp)
	sink.OnDataReceived(h.dBm, h.amp)
	h.mu.Unlock()

	sink.StartRendering()
}

// StartRendering switches the view to continuous rendering.
func (h *Handler[T]) StartRendering() {
	if s := h.linked(); s != nil {
		s.StartRendering()
	}
}

// StopRendering stops rendering immediately.
func (h *Handler[T]) StopRendering() {
	if s := h.linked(); s != nil {
		s.StopRendering()
	}
}

// CalmDownAndStopRendering lets the animation settle on silence and then
// stops rendering.
func (h *Handler[T]) CalmDownAndStopRendering() {
	if s := h.linked(); s != nil {
		s.CalmDown(func() { logger.Debug("handler: calmed down, rendering stopped") })
	}
}

// OnResume is called when the host becomes visible.
func (h *Handler[T]) OnResume() {}

// OnPause is called when the host is hidden.
func (h *Handler[T]) OnPause() {}

// Release unlinks the handler. It is terminal and idempotent.
func (h *Handler[T]) Release() { h.release() }

// Released reports whether Release has been called.
func (h *Handler[T]) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// release reports true only on the first call so variants free their
// capture resource exactly once.
func (h *Handler[T]) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	h.sink = nil
	h.dBm = nil
	h.amp = nil
	return true
}

func (h *Handler[T]) linked() Sink {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.sink
}
