package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errDeviceGone = errors.New("device gone")

type fakeDevice struct {
	chunks   chan []byte
	startErr error
	closed   atomic.Int32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{chunks: make(chan []byte, 16)}
}

func (d *fakeDevice) Start() error { return d.startErr }

func (d *fakeDevice) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c, ok := <-d.chunks:
		if !ok {
			return nil, errDeviceGone
		}
		return c, nil
	}
}

func (d *fakeDevice) Close() error {
	d.closed.Add(1)
	return nil
}

func opener(d *fakeDevice) func() (Device, error) {
	return func() (Device, error) { return d, nil }
}

func TestRecorderDeliversFixedSizeBuffers(t *testing.T) {
	dev := newFakeDevice()
	r := newRecorder(opener(dev))
	got := make(chan int, 4)
	r.SetCallback(func(pcm []byte) { got <- len(pcm) })

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		dev.chunks <- make([]byte, 1500)
	}
	for i := 0; i < 2; i++ {
		select {
		case n := <-got:
			if n != BufferSize {
				t.Fatalf("expected %d byte buffer, got %d", BufferSize, n)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for buffer %d", i)
		}
	}

	r.Finish()
	if r.Recording() || r.State() != Idle {
		t.Fatalf("expected idle after Finish, got %v", r.State())
	}
	if dev.closed.Load() != 1 {
		t.Fatalf("expected device closed once, got %d", dev.closed.Load())
	}
	if r.Err() != nil {
		t.Fatalf("expected clean stop, got %v", r.Err())
	}
}

func TestRecorderFinishWhenIdleReturns(t *testing.T) {
	r := newRecorder(opener(newFakeDevice()))
	done := make(chan struct{})
	go func() {
		r.Finish()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Finish on idle recorder to return")
	}
}

func TestRecorderRejectsSecondStart(t *testing.T) {
	r := newRecorder(opener(newFakeDevice()))
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer r.Finish()
	if err := r.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestRecorderReadFailureEndsLoop(t *testing.T) {
	dev := newFakeDevice()
	r := newRecorder(opener(dev))
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	close(dev.chunks)

	deadline := time.Now().Add(2 * time.Second)
	for r.Recording() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	r.Finish()
	if !errors.Is(r.Err(), errDeviceGone) {
		t.Fatalf("expected device error recorded, got %v", r.Err())
	}

	// A failed recorder can start again.
	dev2 := newFakeDevice()
	r.open = opener(dev2)
	if err := r.Start(); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	r.Finish()
}

func TestRecorderReportsReadFailure(t *testing.T) {
	dev := newFakeDevice()
	r := newRecorder(opener(dev))
	failed := make(chan error, 1)
	r.SetErrorCallback(func(err error) { failed <- err })
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	dev.chunks <- make([]byte, BufferSize)
	close(dev.chunks)

	select {
	case err := <-failed:
		if !errors.Is(err, errDeviceGone) {
			t.Fatalf("expected device error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the error callback after a failed read")
	}
	r.Finish()
	if r.Recording() {
		t.Fatal("expected the failed loop to exit")
	}
}

func TestRecorderFinishDoesNotReportError(t *testing.T) {
	r := newRecorder(opener(newFakeDevice()))
	var calls atomic.Int32
	r.SetErrorCallback(func(error) { calls.Add(1) })
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.Finish()
	if calls.Load() != 0 {
		t.Fatalf("expected no error callback on a clean stop, got %d", calls.Load())
	}
}

func TestRecorderOpenFailure(t *testing.T) {
	boom := errors.New("no mic")
	r := newRecorder(func() (Device, error) { return nil, boom })
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.Finish()
	if !errors.Is(r.Err(), boom) {
		t.Fatalf("expected open error, got %v", r.Err())
	}
}

func pcmConst(n int, v int16) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestRMSdB(t *testing.T) {
	if got := RMSdB(nil); got != -100 {
		t.Fatalf("expected -100 for empty input, got %v", got)
	}
	if got := RMSdB(pcmConst(64, 0)); got != -100 {
		t.Fatalf("expected -100 for silence, got %v", got)
	}
	got := RMSdB(pcmConst(64, 16384))
	want := 20 * math.Log10(0.5/rmsReference)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestVADHysteresis(t *testing.T) {
	v := newVAD()
	if began, _ := v.update(10); began {
		t.Fatal("expected one loud frame not to start speech")
	}
	if began, _ := v.update(10); !began {
		t.Fatal("expected second loud frame to start speech")
	}
	// Levels between the thresholds keep speech going.
	for i := 0; i < 50; i++ {
		if _, ended := v.update(2); ended {
			t.Fatal("expected mid level to hold speech")
		}
	}
	for i := 0; i < 11; i++ {
		if _, ended := v.update(-5); ended {
			t.Fatalf("expected speech to last through %d quiet frames", i+1)
		}
	}
	if _, ended := v.update(-5); !ended {
		t.Fatal("expected speech to end after 12 quiet frames")
	}
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
	levels []float64
	began  chan struct{}
	once   sync.Once
}

func newRecordingListener() *recordingListener {
	return &recordingListener{began: make(chan struct{})}
}

func (l *recordingListener) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *recordingListener) OnBeginningOfSpeech() {
	l.add("begin")
	l.once.Do(func() { close(l.began) })
}

func (l *recordingListener) OnRmsChanged(db float64) {
	l.mu.Lock()
	l.levels = append(l.levels, db)
	l.mu.Unlock()
}

func (l *recordingListener) OnEndOfSpeech()    { l.add("end") }
func (l *recordingListener) OnError(err error) { l.add("error") }

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestSpeechProcessEmitsEvents(t *testing.T) {
	s := newSpeech(nil)
	l := newRecordingListener()
	s.SetListener(l)

	loud := pcmConst(160, 8000)
	quiet := pcmConst(160, 0)
	s.process(loud)
	s.process(loud)
	for i := 0; i < 12; i++ {
		s.process(quiet)
	}

	events := l.snapshot()
	if len(events) != 2 || events[0] != "begin" || events[1] != "end" {
		t.Fatalf("expected begin then end, got %v", events)
	}
	if len(l.levels) != 14 {
		t.Fatalf("expected a level per chunk, got %d", len(l.levels))
	}
}

func TestSpeechStopEndsUtterance(t *testing.T) {
	dev := newFakeDevice()
	s := newSpeech(opener(dev))
	l := newRecordingListener()
	s.SetListener(l)

	if err := s.StartListening(); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	dev.chunks <- pcmConst(160, 8000)
	dev.chunks <- pcmConst(160, 8000)
	select {
	case <-l.began:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speech to begin")
	}

	s.StopListening()
	events := l.snapshot()
	if len(events) != 2 || events[1] != "end" {
		t.Fatalf("expected stop to end speech, got %v", events)
	}
	if dev.closed.Load() != 1 {
		t.Fatalf("expected device closed, got %d", dev.closed.Load())
	}

	s.Destroy()
	if err := s.StartListening(); !errors.Is(err, ErrSpeechDestroyed) {
		t.Fatalf("expected ErrSpeechDestroyed, got %v", err)
	}
}

type destroyingListener struct {
	*recordingListener
	s *Speech
}

func (l *destroyingListener) OnBeginningOfSpeech() {
	l.recordingListener.OnBeginningOfSpeech()
	l.s.Destroy()
}

func TestSpeechDestroyFromCallback(t *testing.T) {
	dev := newFakeDevice()
	s := newSpeech(opener(dev))
	l := &destroyingListener{recordingListener: newRecordingListener(), s: s}
	s.SetListener(l)
	if err := s.StartListening(); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	dev.chunks <- pcmConst(160, 8000)
	dev.chunks <- pcmConst(160, 8000)
	select {
	case <-l.began:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speech to begin")
	}

	deadline := time.Now().Add(2 * time.Second)
	for dev.closed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if dev.closed.Load() != 1 {
		t.Fatal("expected the loop to exit and close the device after Destroy")
	}
	if err := s.StartListening(); !errors.Is(err, ErrSpeechDestroyed) {
		t.Fatalf("expected ErrSpeechDestroyed, got %v", err)
	}
	if events := l.snapshot(); len(events) != 1 || events[0] != "begin" {
		t.Fatalf("expected no events after Destroy, got %v", events)
	}
}

func TestSpeechReadErrorNotifies(t *testing.T) {
	dev := newFakeDevice()
	s := newSpeech(opener(dev))
	l := newRecordingListener()
	s.SetListener(l)
	if err := s.StartListening(); err != nil {
		t.Fatalf("StartListening() error = %v", err)
	}
	close(dev.chunks)

	deadline := time.Now().Add(2 * time.Second)
	for len(l.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.StopListening()

	events := l.snapshot()
	if len(events) != 1 || events[0] != "error" {
		t.Fatalf("expected one error event, got %v", events)
	}
}

func sinePCM(n, bin, size, channels int, amp float64) []byte {
	b := make([]byte, 2*n*channels)
	for i := 0; i < n; i++ {
		s := int16(amp * 32767 * math.Sin(2*math.Pi*float64(bin*i)/float64(size)))
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(b[2*(i*channels+c):], uint16(s))
		}
	}
	return b
}

func TestVisualizerSnapshotPeaksAtToneBin(t *testing.T) {
	const size = 64
	v := newVisualizer(size, time.Now)
	var snap []byte
	v.SetListener(func(fft []byte) { snap = append([]byte(nil), fft...) })
	v.SetEnabled(true)
	v.Write(sinePCM(size, 4, size, 2, 0.5), 2)

	v.capture()
	if len(snap) != size {
		t.Fatalf("expected %d byte snapshot, got %d", size, len(snap))
	}
	best, bestMag := 0, 0.0
	for k := 1; k < size/2; k++ {
		re := float64(int8(snap[2*k]))
		im := float64(int8(snap[2*k+1]))
		if m := math.Hypot(re, im); m > bestMag {
			best, bestMag = k, m
		}
	}
	if best != 4 {
		t.Fatalf("expected peak at bin 4, got %d", best)
	}
	if bestMag < 55 || bestMag > 70 {
		t.Fatalf("expected half-scale tone near 63, got %v", bestMag)
	}
}

func TestVisualizerDisabledPublishesNothing(t *testing.T) {
	v := newVisualizer(64, time.Now)
	calls := 0
	v.SetListener(func([]byte) { calls++ })
	v.Write(sinePCM(64, 4, 64, 1, 0.5), 1)
	v.capture()
	if calls != 0 {
		t.Fatalf("expected no snapshot while disabled, got %d", calls)
	}
	v.SetEnabled(true)
	v.capture()
	v.SetEnabled(false)
	v.capture()
	if calls != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", calls)
	}
}

func TestVisualizerRearmsAfterSilence(t *testing.T) {
	now := time.Unix(100, 0)
	v := newVisualizer(64, func() time.Time { return now })
	v.SetListener(func([]byte) {})
	v.SetEnabled(true)

	v.capture()
	now = now.Add(300 * time.Millisecond)
	v.capture()
	if v.rearms != 0 {
		t.Fatal("expected no re-arm before 500ms of silence")
	}
	now = now.Add(250 * time.Millisecond)
	v.capture()
	if v.rearms != 1 {
		t.Fatalf("expected one re-arm, got %d", v.rearms)
	}

	// Sound resets the silence clock.
	v.Write(sinePCM(64, 4, 64, 1, 0.5), 1)
	now = now.Add(time.Second)
	v.capture()
	now = now.Add(time.Second)
	v.capture()
	if v.rearms != 1 {
		t.Fatalf("expected no re-arm while sound plays, got %d", v.rearms)
	}
}

func TestVisualizerReleaseIsIdempotent(t *testing.T) {
	v := NewVisualizer()
	v.SetEnabled(true)
	v.Release()
	v.Release()
	if v.Enabled() {
		t.Fatal("expected release to disable capture")
	}
}

func TestQuantizeClips(t *testing.T) {
	if got := int8(quantize(300)); got != 127 {
		t.Fatalf("expected 127, got %d", got)
	}
	if got := int8(quantize(-300)); got != -128 {
		t.Fatalf("expected -128, got %d", got)
	}
	if got := int8(quantize(-3.4)); got != -3 {
		t.Fatalf("expected -3, got %d", got)
	}
}

func TestRingBufferLatestPadsAndWraps(t *testing.T) {
	rb := newRingBuffer(4)
	dst := make([]float64, 3)
	rb.write([]float64{1})
	if n := rb.latest(dst); n != 1 || dst[0] != 0 || dst[2] != 1 {
		t.Fatalf("expected zero padded [0 0 1], got %v (%d)", dst, n)
	}
	rb.write([]float64{2, 3, 4, 5, 6})
	rb.latest(dst)
	if dst[0] != 4 || dst[1] != 5 || dst[2] != 6 {
		t.Fatalf("expected [4 5 6], got %v", dst)
	}
}
