package analysis

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func testFrame(n int) []float64 {
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = math.Abs(math.Sin(float64(i)*0.37)) * float64(n-i)
	}
	return frame
}

func TestAggregateLengthForEveryValidCount(t *testing.T) {
	const frameLen = 64
	frame := testFrame(frameLen)

	for _, spacing := range []Spacing{LogSpacing, LinearSpacing} {
		for n := 1; n <= frameLen; n++ {
			layout, err := NewBandLayout(frameLen, n, spacing)
			if err != nil {
				t.Fatalf("%v n=%d: %v", spacing, n, err)
			}
			for _, mode := range []AggregateMode{Mean, Max} {
				bands, err := layout.Aggregate(frame, mode)
				if err != nil {
					t.Fatalf("%v n=%d %v: %v", spacing, n, mode, err)
				}
				if len(bands) != n {
					t.Fatalf("%v n=%d %v: got %d bands", spacing, n, mode, len(bands))
				}
				for i, v := range bands {
					if v < 0 {
						t.Fatalf("%v n=%d %v: band %d = %f", spacing, n, mode, i, v)
					}
				}
			}
		}
	}
}

func TestAggregateSingleBand(t *testing.T) {
	frame := []float64{1, 4, 2, 9, 0, 2}

	bands, err := Aggregate(frame, 1)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(bands) != 1 || bands[0] != 3 {
		t.Errorf("Aggregate(frame, 1) = %v, want [3] (mean)", bands)
	}

	layout, err := NewBandLayout(len(frame), 1, LogSpacing)
	if err != nil {
		t.Fatalf("NewBandLayout: %v", err)
	}
	peak, err := layout.Aggregate(frame, Max)
	if err != nil {
		t.Fatalf("Aggregate(Max): %v", err)
	}
	if peak[0] != 9 {
		t.Errorf("max aggregate = %v, want [9]", peak)
	}
}

func TestBandCountValidation(t *testing.T) {
	tests := []struct {
		frameLen, numBars int
	}{
		{512, 0},
		{512, -3},
		{512, 513},
		{0, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_bins_%d_bands", tt.frameLen, tt.numBars), func(t *testing.T) {
			_, err := NewBandLayout(tt.frameLen, tt.numBars, LogSpacing)
			if !errors.Is(err, ErrInvalidBandCount) {
				t.Errorf("error = %v, want ErrInvalidBandCount", err)
			}
			if _, err := Aggregate(make([]float64, tt.frameLen), tt.numBars); !errors.Is(err, ErrInvalidBandCount) {
				t.Errorf("Aggregate error = %v, want ErrInvalidBandCount", err)
			}
		})
	}
}

func TestLogLayoutWidthsGrow(t *testing.T) {
	tests := []struct {
		frameLen, numBars int
	}{
		{512, 20},
		{1024, 20},
		{2048, 32},
		{64, 10},
		{21, 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.frameLen, tt.numBars), func(t *testing.T) {
			layout, err := NewBandLayout(tt.frameLen, tt.numBars, LogSpacing)
			if err != nil {
				t.Fatalf("NewBandLayout: %v", err)
			}

			covered := 0
			prevWidth := 0
			for i := range layout.NumBands() {
				lo, hi := layout.Bounds(i)
				if lo != covered {
					t.Fatalf("band %d starts at %d, want %d", i, lo, covered)
				}
				width := hi - lo
				if width < 1 {
					t.Fatalf("band %d is empty", i)
				}
				// Flooring the geometric curve may shave one bin.
				if width < prevWidth-1 {
					t.Errorf("band %d width %d shrank from %d", i, width, prevWidth)
				}
				prevWidth = width
				covered = hi
			}
			if covered != tt.frameLen {
				t.Errorf("bands cover %d bins, want %d", covered, tt.frameLen)
			}
		})
	}
}

func TestLogLayoutFavoursLowBins(t *testing.T) {
	layout, err := NewBandLayout(1024, 20, LogSpacing)
	if err != nil {
		t.Fatalf("NewBandLayout: %v", err)
	}
	firstLo, firstHi := layout.Bounds(0)
	lastLo, lastHi := layout.Bounds(19)
	if firstHi-firstLo >= lastHi-lastLo {
		t.Errorf("first band width %d not narrower than last %d", firstHi-firstLo, lastHi-lastLo)
	}
	// The lower half of the bands must cover well under half the bins.
	_, midHi := layout.Bounds(9)
	if midHi >= 512 {
		t.Errorf("first 10 bands cover %d bins, want far fewer than 512", midHi)
	}
}

func TestLinearLayoutIsEven(t *testing.T) {
	layout, err := NewBandLayout(100, 7, LinearSpacing)
	if err != nil {
		t.Fatalf("NewBandLayout: %v", err)
	}
	for i := range layout.NumBands() {
		lo, hi := layout.Bounds(i)
		if w := hi - lo; w != 14 && w != 15 {
			t.Errorf("band %d width = %d, want 14 or 15", i, w)
		}
	}
}

func TestValidateEdgesDegenerate(t *testing.T) {
	tests := []struct {
		name  string
		edges []int
	}{
		{"Empty band", []int{0, 2, 2, 4}},
		{"Gap at end", []int{0, 2, 3}},
		{"No bands", []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateEdges(tt.edges, 4); !errors.Is(err, ErrDegenerateBandLayout) {
				t.Errorf("validateEdges(%v) = %v, want ErrDegenerateBandLayout", tt.edges, err)
			}
		})
	}

	if err := validateEdges([]int{0, 1, 4}, 4); err != nil {
		t.Errorf("validateEdges(valid) = %v", err)
	}
}

func TestAggregateRejectsMismatchedFrame(t *testing.T) {
	layout, err := NewBandLayout(16, 4, LogSpacing)
	if err != nil {
		t.Fatalf("NewBandLayout: %v", err)
	}
	if _, err := layout.Aggregate(make([]float64, 8), Mean); !errors.Is(err, ErrFrameLength) {
		t.Errorf("Aggregate(short frame) error = %v, want ErrFrameLength", err)
	}
}

func TestParseAggregateAndSpacing(t *testing.T) {
	if m, err := ParseAggregateMode("MAX"); err != nil || m != Max {
		t.Errorf("ParseAggregateMode(MAX) = %v, %v", m, err)
	}
	if _, err := ParseAggregateMode("median"); err == nil {
		t.Error("ParseAggregateMode(median) expected error")
	}
	if s, err := ParseSpacing("Linear"); err != nil || s != LinearSpacing {
		t.Errorf("ParseSpacing(Linear) = %v, %v", s, err)
	}
	if _, err := ParseSpacing("mel"); err == nil {
		t.Error("ParseSpacing(mel) expected error")
	}
}

func TestAggregateIntoZeroAllocs(t *testing.T) {
	layout, err := NewBandLayout(512, 20, LogSpacing)
	if err != nil {
		t.Fatalf("NewBandLayout: %v", err)
	}
	frame := testFrame(512)
	bands := make([]float64, 20)

	allocs := testing.AllocsPerRun(100, func() {
		_ = layout.AggregateInto(bands, frame, Mean)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in AggregateInto, got %.1f", allocs)
	}
}
