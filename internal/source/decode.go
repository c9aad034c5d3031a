// SPDX-License-Identifier: MIT
package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
)

// chunkFrames is the number of sample frames each decoder pulls per call.
const chunkFrames = 4096

// chunkDecoder is implemented by all format-specific decoders. next returns
// the following run of mono samples normalized to [-1, 1] and io.EOF once the
// stream is exhausted. The returned slice is only valid until the next call.
type chunkDecoder interface {
	next() ([]float64, error)
	sampleRate() int
	channels() int
}

// newDecoder detects the container by file extension and returns the
// matching decoder positioned at the first sample.
func newDecoder(f *os.File) (chunkDecoder, string, error) {
	ext := strings.ToLower(filepath.Ext(f.Name()))
	var (
		dec chunkDecoder
		err error
	)
	switch ext {
	case ".wav", ".wave":
		dec, err = newWAVDecoder(f)
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg", ".oga":
		dec, err = newOGGDecoder(f)
	default:
		return nil, "", fmt.Errorf("unsupported format: %q", ext)
	}
	if err != nil {
		return nil, "", err
	}
	return dec, strings.TrimPrefix(ext, "."), nil
}

// downmix averages interleaved frames into dst and returns the mono slice.
func downmix(dst []float64, interleaved []float64, channels int) []float64 {
	frames := len(interleaved) / channels
	dst = dst[:frames]
	if channels == 1 {
		copy(dst, interleaved[:frames])
		return dst
	}
	inv := 1.0 / float64(channels)
	for i := range frames {
		var sum float64
		base := i * channels
		for ch := range channels {
			sum += interleaved[base+ch]
		}
		dst[i] = sum * inv
	}
	return dst
}

// --- WAV decoder ---

type wavDecoder struct {
	dec      *wav.Decoder
	buf      *audio.IntBuffer
	scratch  []float64
	mono     []float64
	rate     int
	chans    int
	bitDepth int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	// FwdToPCM positions the reader at the start of PCM data.
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}
	// 1 = integer PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE.
	if dec.WavAudioFormat != 1 && dec.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("unsupported WAV encoding %d", dec.WavAudioFormat)
	}

	chans := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if chans < 1 || bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported WAV layout: %d channels, %d bits", chans, bitDepth)
	}

	return &wavDecoder{
		dec: dec,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: chans, SampleRate: int(dec.SampleRate)},
			Data:           make([]int, chunkFrames*chans),
			SourceBitDepth: bitDepth,
		},
		scratch:  make([]float64, chunkFrames*chans),
		mono:     make([]float64, chunkFrames),
		rate:     int(dec.SampleRate),
		chans:    chans,
		bitDepth: bitDepth,
	}, nil
}

func (d *wavDecoder) next() ([]float64, error) {
	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}

	// 8-bit WAV is unsigned, wider depths are signed.
	scale := 1.0 / float64(int64(1)<<(d.bitDepth-1))
	for i, v := range d.buf.Data[:n] {
		if d.bitDepth == 8 {
			v -= 128
		}
		d.scratch[i] = float64(v) * scale
	}
	return downmix(d.mono, d.scratch[:n], d.chans), nil
}

func (d *wavDecoder) sampleRate() int { return d.rate }
func (d *wavDecoder) channels() int   { return d.chans }

// --- MP3 decoder ---

// go-mp3 always produces 16-bit little endian stereo.
type mp3Decoder struct {
	dec     *mp3.Decoder
	raw     []byte
	scratch []float64
	mono    []float64
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &mp3Decoder{
		dec:     dec,
		raw:     make([]byte, chunkFrames*4),
		scratch: make([]float64, chunkFrames*2),
		mono:    make([]float64, chunkFrames),
	}, nil
}

func (d *mp3Decoder) next() ([]float64, error) {
	n, err := io.ReadFull(d.dec, d.raw)
	if n == 0 {
		if err == nil || err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	samples := n / 2
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(d.raw[i*2:]))
		d.scratch[i] = float64(v) / 32768.0
	}
	return downmix(d.mono, d.scratch[:samples], 2), nil
}

func (d *mp3Decoder) sampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) channels() int   { return 2 }

// --- FLAC decoder ---

type flacDecoder struct {
	stream *flac.Stream
	mono   []float64
	rate   int
	chans  int
	bps    int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}
	info := stream.Info
	return &flacDecoder{
		stream: stream,
		rate:   int(info.SampleRate),
		chans:  int(info.NChannels),
		bps:    int(info.BitsPerSample),
	}, nil
}

func (d *flacDecoder) next() ([]float64, error) {
	frame, err := d.stream.ParseNext()
	if err != nil {
		return nil, err
	}

	nSamples := int(frame.Subframes[0].NSamples)
	if cap(d.mono) < nSamples {
		d.mono = make([]float64, nSamples)
	}
	mono := d.mono[:nSamples]

	scale := 1.0 / (float64(int64(1)<<(d.bps-1)) * float64(d.chans))
	for i := range nSamples {
		var sum int64
		for ch := range d.chans {
			sum += int64(frame.Subframes[ch].Samples[i])
		}
		mono[i] = float64(sum) * scale
	}
	return mono, nil
}

func (d *flacDecoder) sampleRate() int { return d.rate }
func (d *flacDecoder) channels() int   { return d.chans }

// --- OGG Vorbis decoder ---

type oggDecoder struct {
	reader  *oggvorbis.Reader
	raw     []float32
	scratch []float64
	mono    []float64
}

func newOGGDecoder(f *os.File) (*oggDecoder, error) {
	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	chans := reader.Channels()
	return &oggDecoder{
		reader:  reader,
		raw:     make([]float32, chunkFrames*chans),
		scratch: make([]float64, chunkFrames*chans),
		mono:    make([]float64, chunkFrames),
	}, nil
}

func (d *oggDecoder) next() ([]float64, error) {
	n, err := d.reader.Read(d.raw)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if err != nil && err != io.EOF {
		return nil, err
	}

	for i, s := range d.raw[:n] {
		v := float64(s)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		d.scratch[i] = v
	}
	return downmix(d.mono, d.scratch[:n], d.reader.Channels()), nil
}

func (d *oggDecoder) sampleRate() int { return d.reader.SampleRate() }
func (d *oggDecoder) channels() int   { return d.reader.Channels() }
