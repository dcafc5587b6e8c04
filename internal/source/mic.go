package source

import (
	"github.com/olivier-w/bubblewave/internal/capture"
	"github.com/olivier-w/bubblewave/internal/handler"
)

type recorder interface {
	handler.PCMCapture
	Err() error
}

// Mic visualizes the default microphone. Toggle starts and stops the
// recorder.
type Mic struct {
	rec     recorder
	handler *handler.RecorderHandler
}

// NewMic links a recorder handler to v and starts recording.
func NewMic(v Linker, sampleRate int) (*Mic, error) {
	return newMic(v, capture.NewRecorder(sampleRate))
}

func newMic(v Linker, rec recorder) (*Mic, error) {
	m := &Mic{rec: rec, handler: handler.NewRecorderHandler(rec)}
	v.Link(m.handler)
	if err := m.handler.Start(); err != nil {
		m.handler.Release()
		return nil, err
	}
	return m, nil
}

func (m *Mic) Title() string { return "microphone" }

func (m *Mic) Status() string {
	if m.handler.Recording() {
		return "●  recording"
	}
	if err := m.rec.Err(); err != nil {
		return "✕  " + err.Error()
	}
	return "■  stopped"
}

func (m *Mic) Toggle() error { return m.handler.Toggle() }

func (m *Mic) Skip(int) {}

func (m *Mic) Done() <-chan struct{} { return nil }

func (m *Mic) Close() { m.handler.Release() }
