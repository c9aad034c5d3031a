// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"

	applog "barviz/internal/log"
	"barviz/internal/transport"
)

// Publisher packs each frame it is given into the binary packet format and
// sends it with a Sender. It has no clock of its own: one Send call from the
// render loop produces one datagram.
type Publisher struct {
	sender *Sender

	mu           sync.Mutex    // Serializes packing into packetBuffer
	packetBuffer *bytes.Buffer // Reused for every packet
	sent         uint64
}

// NewPublisher creates a Publisher on top of sender.
func NewPublisher(sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	applog.Infof("UDPPublisher: Initializing (Target: %s)", sender.Target())
	return &Publisher{
		sender:       sender,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Dial resolves target and returns a Publisher with its own Sender.
func Dial(target string) (*Publisher, error) {
	sender, err := NewSender(target)
	if err != nil {
		return nil, err
	}
	return NewPublisher(sender)
}

// Send implements transport.Transport. data must be a transport.Frame.
func (p *Publisher) Send(data any) error {
	frame, ok := data.(transport.Frame)
	if !ok {
		return fmt.Errorf("UDPPublisher: unsupported payload %T", data)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := EncodePacket(p.packetBuffer, frame); err != nil {
		return err
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	p.sent++
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", frame.Seq, p.packetBuffer.Len())
	return nil
}

// Sent returns the number of packets written so far.
func (p *Publisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	applog.Debugf("UDPPublisher: Close called")
	return p.sender.Close()
}

var _ transport.Transport = (*Publisher)(nil)
