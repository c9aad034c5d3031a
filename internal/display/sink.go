package display

import (
	"slices"

	applog "barviz/internal/log"
	"barviz/internal/render"
	"barviz/internal/transport"
)

// Sink publishes the loop's output as transport.Frame values. Delivery is
// best effort: a transport error is logged and the session keeps running,
// so a vanished network peer never stops the local display.
type Sink struct {
	name      string
	t         transport.Transport
	seq       uint64
	maxHeight float64
}

// NewSink wraps t. name is used in log messages.
func NewSink(name string, t transport.Transport) *Sink {
	return &Sink{name: name, t: t}
}

// Init sends a calibration frame carrying the first vector.
func (s *Sink) Init(bands []float64, cal render.Calibration) error {
	s.seq = 0
	s.maxHeight = cal.MaxHeight
	s.send(transport.NewFrame(transport.FrameCalibration, s.seq, cal.MaxHeight, slices.Clone(bands)))
	return nil
}

// Update sends a bands frame.
func (s *Sink) Update(bands []float64) error {
	s.seq++
	s.send(transport.NewFrame(transport.FrameBands, s.seq, s.maxHeight, slices.Clone(bands)))
	return nil
}

// Fail sends an error frame.
func (s *Sink) Fail(err error) {
	f := transport.NewFrame(transport.FrameError, s.seq, s.maxHeight, nil)
	f.Error = err.Error()
	s.send(f)
}

// Close closes the underlying transport.
func (s *Sink) Close() error {
	return s.t.Close()
}

func (s *Sink) send(f transport.Frame) {
	if err := s.t.Send(f); err != nil {
		applog.Warnf("Display: %s dropped %s frame %d: %v", s.name, f.Type, f.Seq, err)
	}
}

var _ render.Display = (*Sink)(nil)
