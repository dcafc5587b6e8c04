package handler

import (
	"github.com/olivier-w/bubblewave/internal/capture"
	"github.com/olivier-w/bubblewave/internal/logger"
	"github.com/olivier-w/bubblewave/internal/spectrum"
)

// FFTCapture is the device-output capture a VisualizerHandler drives.
// *capture.Visualizer satisfies it.
type FFTCapture interface {
	SetListener(fn func(fft []byte))
	SetEnabled(enabled bool)
	Release()
}

// VisualizerHandler visualizes audio being played back. It doubles as a
// player.Listener so playback start and end drive rendering.
type VisualizerHandler struct {
	*Handler[[]byte]
	capture FFTCapture
}

// NewVisualizerHandler wires a handler to c using perceptual bands.
func NewVisualizerHandler(c FFTCapture) *VisualizerHandler {
	h := &VisualizerHandler{
		Handler: New(Spectral(spectrum.Perceptual)),
		capture: c,
	}
	c.SetListener(h.OnDataReceived)
	return h
}

// OnPrepared starts rendering and capture when playback begins.
func (h *VisualizerHandler) OnPrepared() {
	h.StartRendering()
	h.capture.SetEnabled(true)
}

// OnCompletion lets the animation settle once playback ends.
func (h *VisualizerHandler) OnCompletion() {
	h.CalmDownAndStopRendering()
	h.capture.SetEnabled(false)
}

func (h *VisualizerHandler) OnResume() { h.capture.SetEnabled(true) }

func (h *VisualizerHandler) OnPause() { h.capture.SetEnabled(false) }

func (h *VisualizerHandler) Release() {
	if h.release() {
		h.capture.Release()
	}
}

// PCMCapture is the microphone recorder a RecorderHandler drives.
// *capture.Recorder satisfies it.
type PCMCapture interface {
	SetCallback(fn func(pcm []byte))
	SetErrorCallback(fn func(err error))
	Start() error
	Finish()
	Recording() bool
}

// RecorderHandler visualizes microphone PCM.
type RecorderHandler struct {
	*Handler[[]byte]
	rec PCMCapture
}

// NewRecorderHandler wires a handler to rec using uniform bands.
func NewRecorderHandler(rec PCMCapture) *RecorderHandler {
	h := &RecorderHandler{
		Handler: New(PCM(spectrum.Uniform)),
		rec:     rec,
	}
	rec.SetCallback(h.OnDataReceived)
	rec.SetErrorCallback(h.onCaptureError)
	return h
}

// onCaptureError settles the animation after the capture loop died so the
// last loud snapshot does not keep it moving.
func (h *RecorderHandler) onCaptureError(err error) {
	logger.Error("microphone capture failed", err)
	h.OnDataReceived(make([]byte, capture.BufferSize))
	h.CalmDownAndStopRendering()
}

// Start begins recording.
func (h *RecorderHandler) Start() error {
	if h.Released() {
		return nil
	}
	return h.rec.Start()
}

// Stop finishes recording, waiting for the capture loop to exit, then
// lets the animation settle.
func (h *RecorderHandler) Stop() {
	h.rec.Finish()
	h.CalmDownAndStopRendering()
}

// Toggle starts recording when idle and stops it otherwise.
func (h *RecorderHandler) Toggle() error {
	if h.rec.Recording() {
		h.Stop()
		return nil
	}
	return h.Start()
}

// Recording reports whether the recorder is running.
func (h *RecorderHandler) Recording() bool { return h.rec.Recording() }

func (h *RecorderHandler) Release() {
	if h.release() {
		h.rec.Finish()
	}
}

// SpeechCapture is the speech level source a SpeechHandler drives.
// *capture.Speech satisfies it.
type SpeechCapture interface {
	SetListener(l capture.SpeechListener)
	StartListening() error
	StopListening()
	Destroy()
}

// SpeechHandler visualizes speech RMS levels. An optional inner listener
// sees every event after the handler.
type SpeechHandler struct {
	*Handler[float64]
	speech SpeechCapture
	inner  capture.SpeechListener
}

// NewSpeechHandler wires a handler to s normalizing over [lo, hi] dB.
func NewSpeechHandler(s SpeechCapture, lo, hi float64) *SpeechHandler {
	h := &SpeechHandler{
		Handler: New(RMS(lo, hi)),
		speech:  s,
	}
	s.SetListener(h)
	return h
}

// SetInnerListener registers l to receive every speech event.
func (h *SpeechHandler) SetInnerListener(l capture.SpeechListener) { h.inner = l }

// StartListening starts the speech source.
func (h *SpeechHandler) StartListening() error { return h.speech.StartListening() }

// StopListening stops the speech source.
func (h *SpeechHandler) StopListening() { h.speech.StopListening() }

func (h *SpeechHandler) OnBeginningOfSpeech() {
	h.StartRendering()
	if h.inner != nil {
		h.inner.OnBeginningOfSpeech()
	}
}

func (h *SpeechHandler) OnRmsChanged(rmsdB float64) {
	h.OnDataReceived(rmsdB)
	if h.inner != nil {
		h.inner.OnRmsChanged(rmsdB)
	}
}

func (h *SpeechHandler) OnEndOfSpeech() {
	h.OnDataReceived(0)
	h.CalmDownAndStopRendering()
	if h.inner != nil {
		h.inner.OnEndOfSpeech()
	}
}

func (h *SpeechHandler) OnError(err error) {
	logger.Error("speech capture failed", err)
	h.OnDataReceived(0)
	h.CalmDownAndStopRendering()
	if h.inner != nil {
		h.inner.OnError(err)
	}
}

func (h *SpeechHandler) Release() {
	if h.release() {
		h.speech.Destroy()
	}
}
