// Package capture provides the audio sources the visualization listens
// to: microphone PCM, speech levels and a tap on local playback.
package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/olivier-w/bubblewave/internal/logger"
)

// DefaultSampleRate is the microphone rate used for visualization.
const DefaultSampleRate = 8000

const chunkQueue = 32

// Device is a started-on-demand PCM16 mono input.
type Device interface {
	Start() error
	// Read blocks for the next chunk or until ctx is done.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// micDevice reads the default capture device through malgo. The audio
// callback never blocks: chunks that don't fit the queue are dropped.
type micDevice struct {
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	chunks  chan []byte
	dropped atomic.Uint64
	once    sync.Once
}

// OpenMic opens the default microphone as S16 mono at sampleRate.
func OpenMic(sampleRate int) (Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	m := &micDevice{ctx: mctx, chunks: make(chan []byte, chunkQueue)}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}
	m.device = dev
	return m, nil
}

func (m *micDevice) onData(_, input []byte, _ uint32) {
	if len(input) == 0 {
		return
	}
	chunk := make([]byte, len(input))
	copy(chunk, input)
	select {
	case m.chunks <- chunk:
	default:
		if n := m.dropped.Add(1); n%100 == 0 {
			logger.Warnf("capture: dropped %d chunks", n)
		}
	}
}

func (m *micDevice) Start() error {
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("starting capture device: %w", err)
	}
	return nil
}

func (m *micDevice) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case chunk := <-m.chunks:
		return chunk, nil
	}
}

func (m *micDevice) Close() error {
	m.once.Do(func() {
		m.device.Uninit()
		_ = m.ctx.Uninit()
		m.ctx.Free()
	})
	return nil
}
