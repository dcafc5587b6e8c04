// Package spectrum converts raw audio snapshots into per-layer loudness
// and amplitude values.
package spectrum

import (
	"encoding/binary"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Loudness ceilings. Device snapshots carry int8 components so their power
// in dB tops out near 76; the PCM path measures plain magnitude after
// amplification and needs a much higher ceiling.
const (
	MaxDeviceDB = 76.0
	MaxPCMDB    = 170.0

	// PCMAmplification is applied to decoded samples before the FFT.
	PCMAmplification = 100.0

	DefaultRMSMin = -2.12
	DefaultRMSMax = 10.0
)

// Policy selects which bin feeds each layer slot.
type Policy int

const (
	// Uniform splits the bins into equal groups and samples each group's center.
	Uniform Policy = iota
	// Perceptual samples bins near 80 Hz, 350 Hz, 2.5 kHz and 10 kHz at
	// 44.1 kHz. It only applies to four slots; other counts fall back to Uniform.
	Perceptual
)

func (p Policy) String() string {
	if p == Perceptual {
		return "perceptual"
	}
	return "uniform"
}

var perceptualCoefficients = [4]float64{
	80.0 / 44100,
	350.0 / 44100,
	2500.0 / 44100,
	10000.0 / 44100,
}

// Analyzer holds scratch buffers reused across calls. It is not safe for
// concurrent use; each capture source owns its own Analyzer.
type Analyzer struct {
	Policy Policy

	dB      []float64
	amp     []float64
	samples []float64
	coeff   []complex128
	fft     *fourier.FFT
}

// New returns an Analyzer using the given band policy.
func New(p Policy) *Analyzer {
	return &Analyzer{Policy: p}
}

// DeviceFFT converts a device FFT snapshot (interleaved int8 re/im pairs)
// into dBm and amp, which must have the same length (the layer count).
func (a *Analyzer) DeviceFFT(snapshot []byte, dBm, amp []float64) {
	if len(snapshot) < 4 {
		zero(dBm, amp)
		return
	}
	dataSize := len(snapshot)/2 - 1
	a.resize(dataSize)

	for i := 0; i < dataSize; i++ {
		re := float64(int8(snapshot[2*i]))
		im := float64(int8(snapshot[2*i+1]))
		sq := re*re + im*im
		if sq == 0 {
			a.dB[i] = 0
		} else {
			a.dB[i] = 20 * math.Log10(sq)
		}
		a.amp[i] = edgeFactor(i, dataSize) * math.Sqrt(sq) / float64(dataSize)
	}
	a.pick(len(snapshot), dataSize, MaxDeviceDB, dBm, amp)
}

// PCM converts a 16-bit little-endian mono buffer. Samples beyond the
// largest power of two that fits are ignored.
func (a *Analyzer) PCM(pcm []byte, dBm, amp []float64) {
	n := floorPow2(len(pcm) / 2)
	if n < 4 {
		zero(dBm, amp)
		return
	}
	if len(a.samples) != n {
		a.samples = make([]float64, n)
		a.coeff = make([]complex128, n/2+1)
		a.fft = fourier.NewFFT(n)
	}
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		a.samples[i] = float64(s) / 32768 * PCMAmplification
	}
	a.fft.Coefficients(a.coeff, a.samples)

	// A real FFT of n samples has n/2 distinct bins; L is n so dataSize
	// and the perceptual coefficients address that half only.
	l := n
	dataSize := l/2 - 1
	a.resize(dataSize)
	for i := 0; i < dataSize; i++ {
		mag := cmplx.Abs(a.coeff[i])
		a.dB[i] = mag
		a.amp[i] = edgeFactor(i, dataSize) * mag / float64(dataSize)
	}
	a.pick(l, dataSize, MaxPCMDB, dBm, amp)
}

// RMS broadcasts a normalized speech level to every slot. Amplitude is
// fixed at 1.
func RMS(rmsdB, lo, hi float64, dBm, amp []float64) {
	v := NormalizeRMS(rmsdB, lo, hi)
	for i := range dBm {
		dBm[i] = v
		if i < len(amp) {
			amp[i] = 1
		}
	}
}

// NormalizeRMS maps v from [lo,hi] onto [0,1], clamping outside values.
func NormalizeRMS(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

func (a *Analyzer) resize(n int) {
	if len(a.dB) == n {
		return
	}
	a.dB = make([]float64, n)
	a.amp = make([]float64, n)
}

func (a *Analyzer) pick(l, dataSize int, ceiling float64, dBm, amp []float64) {
	layers := len(dBm)
	if dataSize <= 0 || layers == 0 {
		zero(dBm, amp)
		return
	}
	perceptual := a.Policy == Perceptual && layers == len(perceptualCoefficients)
	for i := 0; i < layers; i++ {
		var idx int
		if perceptual {
			idx = int(perceptualCoefficients[i] * float64(l))
		} else {
			idx = int((float64(i) + 0.5) * float64(dataSize) / float64(layers))
		}
		if idx >= dataSize {
			idx = dataSize - 1
		}
		if idx < 0 {
			idx = 0
		}
		dBm[i] = clamp01(a.dB[idx] / ceiling)
		if i < len(amp) {
			amp[i] = a.amp[idx]
		}
	}
}

func edgeFactor(i, dataSize int) float64 {
	if i == 0 || i == dataSize-1 {
		return 2
	}
	return 1
}

// floorPow2 returns the largest power of two <= n, or 0 for n < 1.
func floorPow2(n int) int {
	if n < 1 {
		return 0
	}
	p := 1
	for p<<1 <= n {
		p <<= 1
	}
	return p
}

func zero(dBm, amp []float64) {
	for i := range dBm {
		dBm[i] = 0
	}
	for i := range amp {
		amp[i] = 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
