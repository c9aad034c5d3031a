package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidBandCount is returned when the band count is below one or
	// above the number of bins in a frame.
	ErrInvalidBandCount = errors.New("analysis: invalid band count")

	// ErrDegenerateBandLayout is returned when a layout would contain a band
	// with no bins.
	ErrDegenerateBandLayout = errors.New("analysis: degenerate band layout")

	// ErrFrameLength is returned when a frame does not match the layout.
	ErrFrameLength = errors.New("analysis: frame length mismatch")
)

// Spacing selects how bins are grouped into bands.
type Spacing int

const (
	// LogSpacing keeps low bins narrow and widens bands with bin index.
	LogSpacing Spacing = iota
	// LinearSpacing gives every band the same number of bins, +/- one.
	LinearSpacing
)

func (s Spacing) String() string {
	if s == LinearSpacing {
		return "linear"
	}
	return "log"
}

// ParseSpacing converts "log" or "linear" (case-insensitive) to a Spacing.
func ParseSpacing(name string) (Spacing, error) {
	switch strings.ToLower(name) {
	case "log", "logarithmic", "":
		return LogSpacing, nil
	case "linear", "uniform":
		return LinearSpacing, nil
	default:
		return LogSpacing, fmt.Errorf("unknown band spacing: '%s'", name)
	}
}

// AggregateMode selects how the magnitudes inside a band are combined.
type AggregateMode int

const (
	Mean AggregateMode = iota
	Max
)

func (m AggregateMode) String() string {
	if m == Max {
		return "max"
	}
	return "mean"
}

// ParseAggregateMode converts "mean" or "max" (case-insensitive).
func ParseAggregateMode(name string) (AggregateMode, error) {
	switch strings.ToLower(name) {
	case "mean", "avg", "average", "":
		return Mean, nil
	case "max", "peak":
		return Max, nil
	default:
		return Mean, fmt.Errorf("unknown aggregate mode: '%s'", name)
	}
}

// BandLayout maps the bins of a frame onto a fixed number of contiguous
// bands. Band i covers bins [edges[i], edges[i+1]).
type BandLayout struct {
	frameLen int
	spacing  Spacing
	edges    []int
}

// NewBandLayout validates numBars against frameLen and computes the band
// edges once so per-tick aggregation is a straight scan.
func NewBandLayout(frameLen, numBars int, spacing Spacing) (*BandLayout, error) {
	if numBars < 1 || numBars > frameLen {
		return nil, fmt.Errorf("%w: %d bands for %d bins", ErrInvalidBandCount, numBars, frameLen)
	}

	var edges []int
	switch spacing {
	case LogSpacing:
		edges = logEdges(frameLen, numBars)
	case LinearSpacing:
		edges = linearEdges(frameLen, numBars)
	default:
		return nil, fmt.Errorf("analysis: unknown band spacing %d", spacing)
	}

	if err := validateEdges(edges, frameLen); err != nil {
		return nil, err
	}

	return &BandLayout{frameLen: frameLen, spacing: spacing, edges: edges}, nil
}

// validateEdges rejects layouts with an empty band or gaps at either end.
func validateEdges(edges []int, frameLen int) error {
	n := len(edges) - 1
	if n < 1 {
		return fmt.Errorf("%w: no bands", ErrDegenerateBandLayout)
	}
	for i := range n {
		if edges[i+1] <= edges[i] {
			return fmt.Errorf("%w: band %d covers bins [%d, %d)", ErrDegenerateBandLayout, i, edges[i], edges[i+1])
		}
	}
	if edges[0] != 0 || edges[n] != frameLen {
		return fmt.Errorf("%w: bands cover [%d, %d) of %d bins", ErrDegenerateBandLayout, edges[0], edges[n], frameLen)
	}
	return nil
}

// logEdges gives every band one bin and spreads the remaining bins along a
// geometric curve with ratio frameLen^(1/numBars), so band widths grow with
// the bin index.
func logEdges(frameLen, numBars int) []int {
	edges := make([]int, numBars+1)
	extra := float64(frameLen - numBars)
	if extra > 0 && numBars > 1 {
		ratio := math.Pow(float64(frameLen), 1/float64(numBars))
		denom := math.Pow(ratio, float64(numBars)) - 1
		for b := 1; b < numBars; b++ {
			share := extra * (math.Pow(ratio, float64(b)) - 1) / denom
			edges[b] = b + int(math.Floor(share+1e-9))
		}
	} else {
		for b := 1; b < numBars; b++ {
			edges[b] = b
		}
	}
	edges[numBars] = frameLen
	return edges
}

// linearEdges splits the frame evenly; the remainder goes to the upper bands.
func linearEdges(frameLen, numBars int) []int {
	edges := make([]int, numBars+1)
	for b := range numBars + 1 {
		edges[b] = b * frameLen / numBars
	}
	return edges
}

// NumBands returns the number of bands in the layout.
func (l *BandLayout) NumBands() int { return len(l.edges) - 1 }

// FrameLen returns the number of bins the layout expects.
func (l *BandLayout) FrameLen() int { return l.frameLen }

// Spacing returns the spacing the layout was built with.
func (l *BandLayout) Spacing() Spacing { return l.spacing }

// Bounds returns the half-open bin range [lo, hi) of band i.
func (l *BandLayout) Bounds(i int) (lo, hi int) {
	return l.edges[i], l.edges[i+1]
}

// Edges returns a copy of the band edges (NumBands()+1 values).
func (l *BandLayout) Edges() []int {
	return append([]int(nil), l.edges...)
}

// Aggregate returns a new band vector computed from frame.
func (l *BandLayout) Aggregate(frame []float64, mode AggregateMode) ([]float64, error) {
	bands := make([]float64, l.NumBands())
	if err := l.AggregateInto(bands, frame, mode); err != nil {
		return nil, err
	}
	return bands, nil
}

// AggregateInto writes one value per band into bands without allocating.
func (l *BandLayout) AggregateInto(bands, frame []float64, mode AggregateMode) error {
	if len(frame) != l.frameLen {
		return fmt.Errorf("%w: frame has %d bins, layout expects %d", ErrFrameLength, len(frame), l.frameLen)
	}
	if len(bands) != l.NumBands() {
		return fmt.Errorf("%w: %d outputs for %d bands", ErrInvalidBandCount, len(bands), l.NumBands())
	}

	for b := range bands {
		group := frame[l.edges[b]:l.edges[b+1]]
		switch mode {
		case Max:
			peak := group[0]
			for _, v := range group[1:] {
				if v > peak {
					peak = v
				}
			}
			bands[b] = peak
		default:
			var sum float64
			for _, v := range group {
				sum += v
			}
			bands[b] = sum / float64(len(group))
		}
	}
	return nil
}

// Aggregate groups frame into numBars log-spaced bands and returns the mean
// magnitude of each band.
func Aggregate(frame []float64, numBars int) ([]float64, error) {
	layout, err := NewBandLayout(len(frame), numBars, LogSpacing)
	if err != nil {
		return nil, err
	}
	return layout.Aggregate(frame, Mean)
}
