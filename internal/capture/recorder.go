package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/olivier-w/bubblewave/internal/logger"
)

// State is the recorder lifecycle state.
type State int

const (
	Idle State = iota
	Starting
	Busy
	Stopping
	Failure
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Busy:
		return "busy"
	case Stopping:
		return "stopping"
	case Failure:
		return "failure"
	default:
		return "idle"
	}
}

// ErrAlreadyRecording is returned by Start when a capture loop is running.
var ErrAlreadyRecording = errors.New("recorder already running")

// BufferSize is the number of PCM bytes delivered per callback
// (1024 16-bit samples).
const BufferSize = 2048

// Recorder runs a microphone capture loop on its own goroutine and hands
// fixed-size PCM buffers to a callback.
type Recorder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  State
	err    error
	cancel context.CancelFunc
	onData func([]byte)
	onErr  func(error)
	open   func() (Device, error)
}

// NewRecorder returns a recorder on the default microphone.
func NewRecorder(sampleRate int) *Recorder {
	return newRecorder(func() (Device, error) { return OpenMic(sampleRate) })
}

func newRecorder(open func() (Device, error)) *Recorder {
	r := &Recorder{open: open}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// SetCallback sets the PCM consumer. The buffer is reused after fn returns.
func (r *Recorder) SetCallback(fn func(pcm []byte)) {
	r.mu.Lock()
	r.onData = fn
	r.mu.Unlock()
}

// SetErrorCallback sets the consumer of capture failures. fn runs on the
// capture goroutine once the loop has failed, before it exits, and must not
// call Finish.
func (r *Recorder) SetErrorCallback(fn func(err error)) {
	r.mu.Lock()
	r.onErr = fn
	r.mu.Unlock()
}

// Start launches the capture loop. It returns ErrAlreadyRecording unless
// the recorder is idle.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return ErrAlreadyRecording
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.state = Starting
	r.err = nil
	r.cancel = cancel
	go r.run(ctx)
	return nil
}

// Finish asks the loop to stop and blocks until it has exited. It returns
// immediately when idle.
func (r *Recorder) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Starting || r.state == Busy {
		r.state = Stopping
	}
	if r.cancel != nil {
		r.cancel()
	}
	for r.state != Idle {
		r.cond.Wait()
	}
}

// Recording reports whether a capture loop is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != Idle
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure that ended the last capture loop, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) run(ctx context.Context) {
	defer r.exit()

	dev, err := r.open()
	if err != nil {
		r.fail(err)
		return
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Error("recorder: closing device", err)
		}
	}()

	r.mu.Lock()
	if r.state == Starting {
		r.state = Busy
	}
	r.mu.Unlock()

	if err := dev.Start(); err != nil {
		r.fail(err)
		return
	}

	buf := make([]byte, 0, BufferSize)
	for r.State() == Busy {
		chunk, err := dev.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.fail(err)
			}
			return
		}
		if len(chunk) == 0 {
			r.fail(errors.New("empty read"))
			return
		}
		for len(chunk) > 0 {
			n := min(BufferSize-len(buf), len(chunk))
			buf = append(buf, chunk[:n]...)
			chunk = chunk[n:]
			if len(buf) == BufferSize {
				r.deliver(buf)
				buf = buf[:0]
			}
		}
	}
}

func (r *Recorder) deliver(buf []byte) {
	r.mu.Lock()
	fn := r.onData
	r.mu.Unlock()
	if fn != nil {
		fn(buf)
	}
}

func (r *Recorder) fail(err error) {
	logger.Error("recorder: capture failed", err)
	r.mu.Lock()
	r.state = Failure
	r.err = err
	fn := r.onErr
	r.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (r *Recorder) exit() {
	r.mu.Lock()
	r.state = Idle
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}
