// SPDX-License-Identifier: MIT
/*
Package source opens an audio file once and hands out fixed-size blocks of
mono samples to the analysis pipeline.

Decoding is progressive: the file's decoder stays open only until it reports
end of data. Decoded samples are cached as they arrive, so once the first
pass through the file is complete the decoder and file handle are released
and every later block (including wrap-around reads) is served from memory.

A Source is not safe for concurrent use. The render loop is its only reader
and never has more than one block request in flight.
*/
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	applog "barviz/internal/log"
)

var (
	// ErrSourceUnavailable is returned when the path cannot be opened or the
	// container/codec cannot be parsed.
	ErrSourceUnavailable = errors.New("source: audio source unavailable")

	// ErrEmptySource is returned when the source holds no samples at all.
	ErrEmptySource = errors.New("source: audio source is empty")

	// ErrDecode wraps failures hit while decoding past the header.
	ErrDecode = errors.New("source: decode error")

	// ErrEndOfSource is returned by a non-looping source once every sample
	// has been delivered. It wraps io.EOF.
	ErrEndOfSource = fmt.Errorf("source: end of data: %w", io.EOF)
)

// Source owns the decoded sample cache and the read cursor.
type Source struct {
	path   string
	format string
	rate   int
	chans  int
	loop   bool

	file *os.File     // nil once decoding has finished
	dec  chunkDecoder // nil once decoding has finished

	samples  []float64 // decoded mono samples
	complete bool      // true once the total sample count is known
	cursor   int       // 0 <= cursor <= len(samples)
	ended    bool      // non-looping source has delivered its last block
}

// Option configures a Source.
type Option func(*Source)

// WithLoop controls what happens at end of data. Looping sources restart at
// the first sample; non-looping sources zero-pad the last block and then
// report ErrEndOfSource.
func WithLoop(loop bool) Option {
	return func(s *Source) { s.loop = loop }
}

// Open opens the audio file at path and primes the decoder. The file stays
// open until the decoder has delivered every sample or Close is called.
func Open(path string, opts ...Option) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	dec, format, err := newDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
	}

	s := &Source{
		path:   path,
		format: format,
		rate:   dec.sampleRate(),
		chans:  dec.channels(),
		loop:   true,
		file:   f,
		dec:    dec,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Decode the first chunk so empty or immediately corrupt files are
	// rejected before the session starts.
	if err := s.fill(1); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
	}
	if s.complete && len(s.samples) == 0 {
		s.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySource)
	}

	applog.Infof("Source: Opened %s (format: %s, rate: %d Hz, channels: %d)", path, format, s.rate, s.chans)
	return s, nil
}

// NewMemory returns a fully decoded source backed by samples. The slice is
// copied.
func NewMemory(samples []float64, sampleRate int, opts ...Option) *Source {
	s := &Source{
		path:     "memory",
		format:   "pcm",
		rate:     sampleRate,
		chans:    1,
		loop:     true,
		samples:  append([]float64(nil), samples...),
		complete: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextBlock returns exactly n samples starting at the cursor, wrapping to
// the start of the source when fewer than n remain.
func (s *Source) NextBlock(n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("source: block length must be positive, got %d", n)
	}
	block := make([]float64, n)
	if err := s.ReadBlock(block); err != nil {
		return nil, err
	}
	return block, nil
}

// ReadBlock fills dst with the next len(dst) samples and advances the cursor
// to (cursor + len(dst)) mod total. On error the cursor is left unchanged.
func (s *Source) ReadBlock(dst []float64) error {
	if len(dst) == 0 {
		return nil
	}
	if s.ended {
		return ErrEndOfSource
	}

	// One sample of lookahead lets a read that ends exactly on the last
	// sample discover end of data and wrap the cursor right away.
	if err := s.fill(s.cursor + len(dst) + 1); err != nil {
		return err
	}
	if len(s.samples) == 0 {
		return ErrEmptySource
	}

	if end := s.cursor + len(dst); end <= len(s.samples) {
		copy(dst, s.samples[s.cursor:end])
		s.cursor = end
		s.settle()
		return nil
	}

	// Past the decoded data, which means the total is known.
	total := len(s.samples)
	pos := s.cursor
	written := 0
	for written < len(dst) {
		if pos == total {
			if !s.loop {
				clear(dst[written:])
				break
			}
			pos = 0
		}
		k := copy(dst[written:], s.samples[pos:total])
		written += k
		pos += k
	}
	s.cursor = pos
	s.settle()
	return nil
}

// settle applies end-of-data handling once the cursor reaches the total.
func (s *Source) settle() {
	if !s.complete || s.cursor != len(s.samples) {
		return
	}
	if s.loop {
		s.cursor = 0
		return
	}
	s.ended = true
}

// fill decodes until at least want samples are cached or the stream ends.
func (s *Source) fill(want int) error {
	for !s.complete && len(s.samples) < want {
		chunk, err := s.dec.next()
		if len(chunk) > 0 {
			s.samples = append(s.samples, chunk...)
		}
		if err == io.EOF {
			s.finishDecode()
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %s at sample %d: %w", ErrDecode, s.path, len(s.samples), err)
		}
	}
	return nil
}

// finishDecode records the total and releases the decoder and file.
func (s *Source) finishDecode() {
	s.complete = true
	s.dec = nil
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			applog.Warnf("Source: Error closing %s: %v", s.path, err)
		}
		s.file = nil
	}
	applog.Debugf("Source: Decoded %d samples from %s", len(s.samples), s.path)
	if s.loop && s.cursor == len(s.samples) {
		s.cursor = 0
	}
}

// Cursor returns the index of the next sample to be read.
func (s *Source) Cursor() int { return s.cursor }

// Total returns the number of mono samples, or -1 while decoding is still
// in progress.
func (s *Source) Total() int {
	if !s.complete {
		return -1
	}
	return len(s.samples)
}

// Decoded returns the number of samples decoded so far.
func (s *Source) Decoded() int { return len(s.samples) }

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.chans }
func (s *Source) Format() string  { return s.format }
func (s *Source) Path() string    { return s.path }

// Duration returns the playing time of the decoded samples.
func (s *Source) Duration() time.Duration {
	if s.rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / float64(s.rate) * float64(time.Second))
}

// DecodeAll forces the remaining data to be decoded, which makes Total and
// Duration exact.
func (s *Source) DecodeAll() error {
	for !s.complete {
		if err := s.fill(len(s.samples) + chunkFrames); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the decoder and file handle. The cached samples are dropped.
func (s *Source) Close() error {
	s.dec = nil
	s.samples = nil
	s.complete = true
	s.cursor = 0
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
