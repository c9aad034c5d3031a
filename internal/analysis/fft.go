// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"strings"

	applog "barviz/internal/log"
	"barviz/pkg/bitint"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrBlockSize is returned for block sizes that are not a power of two, or
// for blocks whose length does not match the transformer.
var ErrBlockSize = errors.New("analysis: invalid block size")

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	case Rectangular:
		return "Rectangular"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Backend selects the FFT implementation.
type Backend int

const (
	GonumBackend Backend = iota
	GoDSPBackend
)

func (b Backend) String() string {
	if b == GoDSPBackend {
		return "godsp"
	}
	return "gonum"
}

// realFFT computes the non-negative frequency coefficients of a real signal.
// dst has length len(seq)/2 + 1.
type realFFT interface {
	coefficients(dst []complex128, seq []float64)
}

type gonumFFT struct{ fft *fourier.FFT }

func (g gonumFFT) coefficients(dst []complex128, seq []float64) {
	g.fft.Coefficients(dst, seq)
}

// godspFFT allocates on every call. It is kept as a cross-check for the
// gonum path and for platforms where its output is preferred.
type godspFFT struct{}

func (godspFFT) coefficients(dst []complex128, seq []float64) {
	copy(dst, dspfft.FFTReal(seq))
}

// workspace holds pre-allocated buffers for one transform pass.
type workspace struct {
	input     []float64    // windowed block
	fftOutput []complex128 // N/2 + 1 coefficients
	window    []float64    // window coefficients
}

// Transformer windows a block of real samples and returns the magnitudes of
// its non-negative frequency bins. A Transformer carries no state between
// calls: identical blocks produce identical frames. It is not safe for
// concurrent use because the workspace is shared.
type Transformer struct {
	blockSize  int
	sampleRate float64
	windowType WindowFunc
	backend    Backend
	fft        realFFT
	workspace  workspace
}

// NewTransformer validates the block size and pre-computes the window.
func NewTransformer(blockSize int, sampleRate float64, windowType WindowFunc, backend Backend) (*Transformer, error) {
	if !bitint.IsPowerOfTwo(blockSize) || blockSize < 2 {
		return nil, fmt.Errorf("%w: %d is not a power of two >= 2", ErrBlockSize, blockSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("analysis: sample rate must be positive, got %f", sampleRate)
	}

	var impl realFFT
	switch backend {
	case GonumBackend:
		impl = gonumFFT{fft: fourier.NewFFT(blockSize)}
	case GoDSPBackend:
		impl = godspFFT{}
	default:
		return nil, fmt.Errorf("analysis: unknown FFT backend %d", backend)
	}

	coeffs := make([]float64, blockSize)
	applyWindow(coeffs, windowType)

	applog.Infof("Analysis: Initializing Transformer (Size: %d, SampleRate: %.1f Hz, Window: %v, Backend: %v)",
		blockSize, sampleRate, windowType, backend)

	return &Transformer{
		blockSize:  blockSize,
		sampleRate: sampleRate,
		windowType: windowType,
		backend:    backend,
		fft:        impl,
		workspace: workspace{
			input:     make([]float64, blockSize),
			fftOutput: make([]complex128, blockSize/2+1),
			window:    coeffs,
		},
	}, nil
}

// Transform returns a new frame of BlockSize()/2 magnitudes.
func (t *Transformer) Transform(block []float64) ([]float64, error) {
	frame := make([]float64, t.FrameLen())
	if err := t.TransformInto(frame, block); err != nil {
		return nil, err
	}
	return frame, nil
}

// TransformInto writes the magnitudes of block into frame without
// allocating. The Nyquist coefficient is dropped so the frame holds exactly
// BlockSize()/2 bins.
func (t *Transformer) TransformInto(frame, block []float64) error {
	if len(block) != t.blockSize {
		return fmt.Errorf("%w: block has %d samples, want %d", ErrBlockSize, len(block), t.blockSize)
	}
	if len(frame) != t.FrameLen() {
		return fmt.Errorf("%w: frame has %d bins, want %d", ErrBlockSize, len(frame), t.FrameLen())
	}

	for i, s := range block {
		t.workspace.input[i] = s * t.workspace.window[i]
	}

	t.fft.coefficients(t.workspace.fftOutput, t.workspace.input)

	for i := range frame {
		frame[i] = cmplx.Abs(t.workspace.fftOutput[i])
	}
	return nil
}

// BlockSize returns the number of samples per transform.
func (t *Transformer) BlockSize() int { return t.blockSize }

// FrameLen returns the number of bins per frame.
func (t *Transformer) FrameLen() int { return t.blockSize / 2 }

// SampleRate returns the sample rate used for bin frequencies.
func (t *Transformer) SampleRate() float64 { return t.sampleRate }

// Window returns the configured window function.
func (t *Transformer) Window() WindowFunc { return t.windowType }

// FrequencyForBin returns the center frequency (Hz) for a given bin index,
// or 0 for indices outside the frame.
func (t *Transformer) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= t.FrameLen() {
		return 0.0
	}
	return float64(binIndex) * (t.sampleRate / float64(t.blockSize))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// ParseBackend converts "gonum" or "godsp" (case-insensitive) to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "gonum", "":
		return GonumBackend, nil
	case "godsp", "go-dsp":
		return GoDSPBackend, nil
	default:
		return GonumBackend, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window function. Unknown types
// fall back to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum's window funcs scale the slice in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
