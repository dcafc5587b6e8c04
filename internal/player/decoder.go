package player

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// audioDecoder yields interleaved 16-bit little-endian PCM.
type audioDecoder interface {
	io.ReadSeeker
	Length() int64
	SampleRate() int
	ChannelCount() int
}

// newDecoder picks a decoder by file extension.
func newDecoder(f *os.File) (audioDecoder, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	switch ext {
	case ".mp3":
		return newMP3Decoder(f)
	case ".wav":
		return newWAVDecoder(f)
	case ".flac":
		return newFLACDecoder(f)
	case ".ogg":
		return newOGGDecoder(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// mp3Decoder wraps go-mp3, which always produces stereo.
type mp3Decoder struct {
	*mp3.Decoder
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{dec}, nil
}

func (d *mp3Decoder) ChannelCount() int { return 2 }

// blockSource produces decoded PCM16LE a block at a time.
type blockSource interface {
	next() ([]byte, error)
	seekFrame(frame int64) error
}

// blockDecoder turns a blockSource into an audioDecoder, buffering the
// part of a block the caller did not consume.
type blockDecoder struct {
	src      blockSource
	buf      []byte
	pos      int64
	total    int64
	rate     int
	channels int
}

func (d *blockDecoder) Read(p []byte) (int, error) {
	if len(d.buf) == 0 {
		block, err := d.src.next()
		if len(block) == 0 {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		d.buf = block
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	d.pos += int64(n)
	return n, nil
}

func (d *blockDecoder) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = d.pos + offset
	case io.SeekEnd:
		pos = d.total + offset
	}
	pos = max(0, min(pos, d.total))

	frameSize := int64(d.channels) * 2
	frame := pos / frameSize
	if err := d.src.seekFrame(frame); err != nil {
		return d.pos, err
	}
	d.buf = nil
	d.pos = frame * frameSize
	return d.pos, nil
}

func (d *blockDecoder) Length() int64     { return d.total }
func (d *blockDecoder) SampleRate() int   { return d.rate }
func (d *blockDecoder) ChannelCount() int { return d.channels }

// putSample writes v, clamped to int16, as sample i of dst.
func putSample(dst []byte, i, v int) {
	v = max(-32768, min(v, 32767))
	binary.LittleEndian.PutUint16(dst[2*i:], uint16(int16(v)))
}

// --- WAV ---

type wavSource struct {
	file      *os.File
	pcmStart  int64
	bitDepth  int
	frameSize int64 // source bytes per sample frame
	raw       []byte
}

const wavBlockFrames = 4096

func newWAVDecoder(f *os.File) (*blockDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	frameSize := int64(channels * bitDepth / 8)

	pcmStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating WAV PCM data: %w", err)
	}

	frames := dec.PCMLen() / frameSize
	return &blockDecoder{
		src: &wavSource{
			file:      f,
			pcmStart:  pcmStart,
			bitDepth:  bitDepth,
			frameSize: frameSize,
			raw:       make([]byte, wavBlockFrames*frameSize),
		},
		total:    frames * int64(channels) * 2,
		rate:     int(dec.SampleRate),
		channels: channels,
	}, nil
}

func (s *wavSource) next() ([]byte, error) {
	n, err := io.ReadFull(s.file, s.raw)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	width := s.bitDepth / 8
	samples := n / width
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		b := s.raw[i*width:]
		var v int
		switch s.bitDepth {
		case 8:
			v = (int(b[0]) - 128) << 8 // unsigned
		case 16:
			v = int(int16(binary.LittleEndian.Uint16(b)))
		case 24:
			x := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if x&0x800000 != 0 {
				x |= ^0xFFFFFF
			}
			v = int(x >> 8)
		case 32:
			v = int(int32(binary.LittleEndian.Uint32(b)) >> 16)
		}
		putSample(out, i, v)
	}
	return out, err
}

func (s *wavSource) seekFrame(frame int64) error {
	_, err := s.file.Seek(s.pcmStart+frame*s.frameSize, io.SeekStart)
	return err
}

// --- FLAC ---

type flacSource struct {
	stream   *flac.Stream
	channels int
	bps      int
}

func newFLACDecoder(f *os.File) (*blockDecoder, error) {
	stream, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	channels := int(info.NChannels)
	return &blockDecoder{
		src:      &flacSource{stream: stream, channels: channels, bps: int(info.BitsPerSample)},
		total:    int64(info.NSamples) * int64(channels) * 2,
		rate:     int(info.SampleRate),
		channels: channels,
	}, nil
}

func (s *flacSource) next() ([]byte, error) {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return nil, err
	}
	n := int(frame.Subframes[0].NSamples)
	out := make([]byte, n*s.channels*2)
	for i := 0; i < n; i++ {
		for ch := 0; ch < s.channels; ch++ {
			v := int(frame.Subframes[ch].Samples[i])
			if s.bps > 16 {
				v >>= s.bps - 16
			} else if s.bps < 16 {
				v <<= 16 - s.bps
			}
			putSample(out, i*s.channels+ch, v)
		}
	}
	return out, nil
}

func (s *flacSource) seekFrame(frame int64) error {
	_, err := s.stream.Seek(uint64(frame))
	return err
}

// --- OGG Vorbis ---

type oggSource struct {
	reader  *oggvorbis.Reader
	samples []float32
}

const oggBlockSamples = 8192

func newOGGDecoder(f *os.File) (*blockDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	channels := reader.Channels()
	return &blockDecoder{
		src:      &oggSource{reader: reader, samples: make([]float32, oggBlockSamples)},
		total:    reader.Length() * int64(channels) * 2,
		rate:     reader.SampleRate(),
		channels: channels,
	}, nil
}

func (s *oggSource) next() ([]byte, error) {
	n, err := s.reader.Read(s.samples)
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		putSample(out, i, int(s.samples[i]*32767))
	}
	return out, err
}

func (s *oggSource) seekFrame(frame int64) error {
	return s.reader.SetPosition(frame)
}
