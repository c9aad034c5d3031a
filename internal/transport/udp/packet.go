package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"barviz/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Tick number             |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Kind              | uint8          | 1            | 0 bands, 1 calib, 2 err |
| Max Height        | float32        | 4            | Session ceiling         |
| Band Count        | uint16         | 2            | Number of floats (N)    |
| Bands             | []float32      | N * 4        | Band amplitudes         |
+-----------------------------------------------------------------------------+

Visual Layout:

|<- 4 B ->|<--- 8 B --->|<1 B>|<- 4 B ->|<- 2 B ->|<------ N * 4 B ------>|
+---------+-------------+-----+---------+---------+-----------------------+
|   Seq   |  Timestamp  |Kind | MaxHgt  |  Count  |    Bands (float32)    |
+---------+-------------+-----+---------+---------+-----------------------+
*/

// HeaderSize is the byte length of a packet with no bands.
const HeaderSize = 4 + 8 + 1 + 4 + 2

// MaxBands is the largest band count a packet can carry.
const MaxBands = math.MaxUint16

// Packet kinds.
const (
	KindBands       uint8 = 0
	KindCalibration uint8 = 1
	KindError       uint8 = 2
)

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is the decoded form of one datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Kind      uint8
	MaxHeight float32
	Bands     []float32
}

func kindOf(t transport.FrameType) (uint8, error) {
	switch t {
	case transport.FrameBands:
		return KindBands, nil
	case transport.FrameCalibration:
		return KindCalibration, nil
	case transport.FrameError:
		return KindError, nil
	default:
		return 0, fmt.Errorf("udp: unknown frame type %q", t)
	}
}

// EncodePacket appends the wire form of f to buf, which is reset first.
// The sequence number is truncated to 32 bits.
func EncodePacket(buf *bytes.Buffer, f transport.Frame) error {
	kind, err := kindOf(f.Type)
	if err != nil {
		return err
	}
	if len(f.Bands) > MaxBands {
		return fmt.Errorf("udp: %d bands exceed packet limit %d", len(f.Bands), MaxBands)
	}

	buf.Reset()
	buf.Grow(HeaderSize + 4*len(f.Bands))

	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(f.Seq))
	binary.BigEndian.PutUint64(hdr[4:12], uint64(f.Timestamp))
	hdr[12] = kind
	binary.BigEndian.PutUint32(hdr[13:17], math.Float32bits(float32(f.MaxHeight)))
	binary.BigEndian.PutUint16(hdr[17:19], uint16(len(f.Bands)))
	buf.Write(hdr[:])

	var word [4]byte
	for _, v := range f.Bands {
		binary.BigEndian.PutUint32(word[:], math.Float32bits(float32(v)))
		buf.Write(word[:])
	}
	return nil
}

// DecodePacket parses one datagram.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(data), HeaderSize)
	}

	p := Packet{
		Seq:       binary.BigEndian.Uint32(data[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:12])),
		Kind:      data[12],
		MaxHeight: math.Float32frombits(binary.BigEndian.Uint32(data[13:17])),
	}
	n := int(binary.BigEndian.Uint16(data[17:19]))
	body := data[HeaderSize:]
	if len(body) < 4*n {
		return Packet{}, fmt.Errorf("%w: %d bands need %d bytes, have %d", ErrShortPacket, n, 4*n, len(body))
	}

	p.Bands = make([]float32, n)
	for i := range p.Bands {
		p.Bands[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*i:]))
	}
	return p, nil
}
