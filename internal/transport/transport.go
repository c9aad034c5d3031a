package transport

import "time"

// Transport defines a generic interface for sending band frames to
// consumers outside the process. Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// FrameType tags what a Frame carries.
type FrameType string

const (
	// FrameCalibration carries the first vector and the session ceiling.
	FrameCalibration FrameType = "calibration"
	// FrameBands carries one tick's vector.
	FrameBands FrameType = "bands"
	// FrameError carries the failure that ended the session.
	FrameError FrameType = "error"
)

// Frame is the payload the display sink hands to every transport.
type Frame struct {
	Type      FrameType `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp int64     `json:"ts"` // Nanoseconds since epoch
	MaxHeight float64   `json:"max_height"`
	Bands     []float64 `json:"bands,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewFrame stamps a frame with the current time.
func NewFrame(kind FrameType, seq uint64, maxHeight float64, bands []float64) Frame {
	return Frame{
		Type:      kind,
		Seq:       seq,
		Timestamp: time.Now().UnixNano(),
		MaxHeight: maxHeight,
		Bands:     bands,
	}
}
