package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
)

// SpeechListener receives speech level events. Callbacks run on the
// capture goroutine.
type SpeechListener interface {
	OnBeginningOfSpeech()
	OnRmsChanged(rmsdB float64)
	OnEndOfSpeech()
	OnError(err error)
}

// ErrSpeechDestroyed is returned by StartListening after Destroy.
var ErrSpeechDestroyed = errors.New("speech source destroyed")

// rmsReference is the level reported as 0 dB. Quiet rooms land below zero
// and normal speech between roughly 0 and 10.
const rmsReference = 0.01

// vad is an energy detector with hysteresis so short dips or clicks
// don't toggle speech state.
type vad struct {
	speechThreshold  float64 // dB to start speech
	silenceThreshold float64 // dB to end speech
	speechFrames     int
	silenceFrames    int
	inSpeech         bool
	speechCount      int
	silenceCount     int
}

func newVAD() *vad {
	return &vad{
		speechThreshold:  4,
		silenceThreshold: 1,
		speechFrames:     2,
		silenceFrames:    12,
	}
}

// update feeds one level and reports the transition it caused, if any.
func (v *vad) update(db float64) (began, ended bool) {
	if v.inSpeech {
		if db < v.silenceThreshold {
			v.silenceCount++
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
				return false, true
			}
		} else {
			v.silenceCount = 0
		}
		return false, false
	}
	if db >= v.speechThreshold {
		v.speechCount++
		if v.speechCount >= v.speechFrames {
			v.inSpeech = true
			v.speechCount = 0
			return true, false
		}
	} else {
		v.speechCount = 0
	}
	return false, false
}

func (v *vad) reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}

// RMSdB returns the level of a PCM16LE mono buffer in dB relative to
// rmsReference. Silence yields -Inf clamped to -100.
func RMSdB(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return -100
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return -100
	}
	return math.Max(20*math.Log10(rms/rmsReference), -100)
}

// Speech reports microphone RMS levels plus begin and end of speech.
type Speech struct {
	mu        sync.Mutex
	listener  SpeechListener
	open      func() (Device, error)
	vad       *vad
	cancel    context.CancelFunc
	done      chan struct{}
	destroyed bool
}

// NewSpeech returns a speech source on the default microphone.
func NewSpeech(sampleRate int) *Speech {
	return newSpeech(func() (Device, error) { return OpenMic(sampleRate) })
}

func newSpeech(open func() (Device, error)) *Speech {
	return &Speech{open: open, vad: newVAD()}
}

// SetListener sets the event receiver.
func (s *Speech) SetListener(l SpeechListener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// StartListening starts capturing. Calling it while listening restarts
// detection from silence.
func (s *Speech) StartListening() error {
	s.StopListening()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSpeechDestroyed
	}
	dev, err := s.open()
	if err != nil {
		return err
	}
	if err := dev.Start(); err != nil {
		_ = dev.Close()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.vad.reset()
	go s.run(ctx, dev, s.done)
	return nil
}

// StopListening stops capturing and waits for the loop to exit. An
// utterance in progress is ended. Listener callbacks run on the loop and
// must not call it; they may call Destroy.
func (s *Speech) StopListening() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Destroy stops capturing for good. It does not wait for the loop, so it
// is safe from a listener callback; no events are delivered after it
// returns and the loop closes the device on its way out.
func (s *Speech) Destroy() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel, s.done = nil, nil
	s.destroyed = true
	s.listener = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Speech) run(ctx context.Context, dev Device, done chan struct{}) {
	defer close(done)
	defer dev.Close()

	for {
		chunk, err := dev.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				if l := s.current(); l != nil {
					l.OnError(err)
				}
			} else if s.vad.inSpeech {
				s.vad.reset()
				if l := s.current(); l != nil {
					l.OnEndOfSpeech()
				}
			}
			return
		}
		s.process(chunk)
	}
}

// process handles one PCM chunk.
func (s *Speech) process(pcm []byte) {
	db := RMSdB(pcm)
	began, ended := s.vad.update(db)
	// The listener is looked up per event so a Destroy from inside a
	// callback silences the rest.
	if l := s.current(); began && l != nil {
		l.OnBeginningOfSpeech()
	}
	if l := s.current(); l != nil {
		l.OnRmsChanged(db)
	}
	if l := s.current(); ended && l != nil {
		l.OnEndOfSpeech()
	}
}

func (s *Speech) current() SpeechListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}
