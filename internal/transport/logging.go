package transport

import (
	"encoding/json"
	"fmt"

	applog "barviz/internal/log"
)

// LoggingTransport implements the Transport interface by writing each frame
// to the application log as JSON. It backs the "log" display mode.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Error frames are logged at error level.
func (lt *LoggingTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("transport: encode %T: %w", data, err)
	}

	if f, ok := data.(Frame); ok && f.Type == FrameError {
		applog.Errorf("Transport: %s", payload)
		return nil
	}
	applog.Infof("Transport: %s", payload)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
