package source

import (
	"sync"

	"github.com/olivier-w/bubblewave/internal/capture"
	"github.com/olivier-w/bubblewave/internal/handler"
	"github.com/olivier-w/bubblewave/internal/spectrum"
)

// Speech visualizes speech loudness from the microphone.
type Speech struct {
	handler *handler.SpeechHandler

	mu        sync.Mutex
	listening bool
	speaking  bool
	err       error
}

// NewSpeech links a speech handler to v and starts listening. lo and hi
// bound the RMS dB range mapped to full loudness; pass zeros for the
// defaults.
func NewSpeech(v Linker, sampleRate int, lo, hi float64) (*Speech, error) {
	return newSpeech(v, capture.NewSpeech(sampleRate), lo, hi)
}

func newSpeech(v Linker, c handler.SpeechCapture, lo, hi float64) (*Speech, error) {
	if lo == 0 && hi == 0 {
		lo, hi = spectrum.DefaultRMSMin, spectrum.DefaultRMSMax
	}
	s := &Speech{handler: handler.NewSpeechHandler(c, lo, hi)}
	s.handler.SetInnerListener(s)
	v.Link(s.handler)
	if err := s.Toggle(); err != nil {
		s.handler.Release()
		return nil, err
	}
	return s, nil
}

func (s *Speech) OnBeginningOfSpeech() { s.setSpeaking(true, nil) }

func (s *Speech) OnRmsChanged(float64) {}

func (s *Speech) OnEndOfSpeech() { s.setSpeaking(false, nil) }

func (s *Speech) OnError(err error) { s.setSpeaking(false, err) }

func (s *Speech) setSpeaking(v bool, err error) {
	s.mu.Lock()
	s.speaking = v
	if err != nil {
		s.err = err
		s.listening = false
	}
	s.mu.Unlock()
}

func (s *Speech) Title() string { return "speech" }

func (s *Speech) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.speaking:
		return "●  speaking"
	case s.listening:
		return "○  listening"
	case s.err != nil:
		return "✕  " + s.err.Error()
	}
	return "■  stopped"
}

// Toggle starts or stops listening.
func (s *Speech) Toggle() error {
	s.mu.Lock()
	listening := s.listening
	s.mu.Unlock()

	if listening {
		s.handler.StopListening()
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		return nil
	}
	if err := s.handler.StartListening(); err != nil {
		return err
	}
	s.mu.Lock()
	s.listening = true
	s.err = nil
	s.mu.Unlock()
	return nil
}

func (s *Speech) Skip(int) {}

func (s *Speech) Done() <-chan struct{} { return nil }

func (s *Speech) Close() { s.handler.Release() }
