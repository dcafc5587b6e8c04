package capture

import "sync"

// ringBuffer keeps the most recent mono samples written to it.
type ringBuffer struct {
	mu   sync.Mutex
	buf  []float64
	w    int // write position
	fill int
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]float64, size)}
}

// write appends samples, overwriting the oldest once full.
func (rb *ringBuffer) write(p []float64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buf)
	for _, s := range p {
		rb.buf[rb.w] = s
		rb.w = (rb.w + 1) % size
	}
	rb.fill = min(rb.fill+len(p), size)
}

// latest copies the newest len(dst) samples into dst, oldest first.
// Missing samples are left as zero at the front. It returns how many
// samples were available.
func (rb *ringBuffer) latest(dst []float64) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(dst), rb.fill)
	pad := len(dst) - n
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}
	size := len(rb.buf)
	start := (rb.w - n + size) % size
	for i := 0; i < n; i++ {
		dst[pad+i] = rb.buf[(start+i)%size]
	}
	return n
}

func (rb *ringBuffer) clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.w = 0
	rb.fill = 0
}
