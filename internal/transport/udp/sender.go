package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "barviz/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp: sender is closed")

// Sender handles sending data packets over UDP.
type Sender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // Protects conn during Close
	closed     bool
}

// NewSender creates a new Sender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// No local port is needed for sending.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("UDP Sender: Connection established to %s", conn.RemoteAddr())

	return &Sender{
		conn:       conn,
		targetAddr: udpAddr,
	}, nil
}

// Target returns the resolved destination address.
func (s *Sender) Target() *net.UDPAddr { return s.targetAddr }

// Send transmits the given byte slice as a UDP packet.
// It is safe for concurrent use.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		applog.Debugf("UDP Sender: Error sending packet: %v", err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	applog.Infof("UDP Sender: Closing connection to %s", s.conn.RemoteAddr())
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ interface{ Close() error } = (*Sender)(nil)
