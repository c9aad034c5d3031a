// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"io"

	applog "barviz/internal/log"
)

// BlockReader is the sample source side of the pipeline. ReadBlock fills dst
// with the next len(dst) samples.
type BlockReader interface {
	ReadBlock(dst []float64) error
}

// Pipeline runs one pass of source → transform → aggregate per call. It is
// not safe for concurrent use: the block and frame buffers are reused and the
// source cursor is advanced on every pass.
type Pipeline struct {
	src    BlockReader
	tr     *Transformer
	layout *BandLayout
	mode   AggregateMode

	block []float64
	frame []float64
}

// NewPipeline wires the stages together and checks that they agree on sizes.
func NewPipeline(src BlockReader, tr *Transformer, layout *BandLayout, mode AggregateMode) (*Pipeline, error) {
	if src == nil || tr == nil || layout == nil {
		return nil, fmt.Errorf("analysis: pipeline requires a source, transformer and band layout")
	}
	if layout.FrameLen() != tr.FrameLen() {
		return nil, fmt.Errorf("%w: layout expects %d bins, transformer produces %d", ErrFrameLength, layout.FrameLen(), tr.FrameLen())
	}

	applog.Infof("Analysis: Pipeline ready (Block: %d, Bands: %d, Spacing: %v, Aggregate: %v)",
		tr.BlockSize(), layout.NumBands(), layout.Spacing(), mode)

	return &Pipeline{
		src:    src,
		tr:     tr,
		layout: layout,
		mode:   mode,
		block:  make([]float64, tr.BlockSize()),
		frame:  make([]float64, tr.FrameLen()),
	}, nil
}

// Next pulls one block and returns a freshly allocated band vector. The
// caller owns the returned slice.
func (p *Pipeline) Next() ([]float64, error) {
	if err := p.src.ReadBlock(p.block); err != nil {
		return nil, err
	}
	if err := p.tr.TransformInto(p.frame, p.block); err != nil {
		return nil, err
	}
	bands := make([]float64, p.layout.NumBands())
	if err := p.layout.AggregateInto(bands, p.frame, p.mode); err != nil {
		return nil, err
	}
	return bands, nil
}

// NumBands returns the length of every vector produced by Next.
func (p *Pipeline) NumBands() int { return p.layout.NumBands() }

// Layout returns the band layout in use.
func (p *Pipeline) Layout() *BandLayout { return p.layout }

// Transformer returns the transform stage in use.
func (p *Pipeline) Transformer() *Transformer { return p.tr }

// Close releases the source if it holds resources.
func (p *Pipeline) Close() error {
	if c, ok := p.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
