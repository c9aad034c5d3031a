package utils

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MockTransport records every payload it is asked to send.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the payload for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Payloads returns a copy of everything sent so far.
func (m *MockTransport) Payloads() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Sent...)
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics in [-0.9, 0.9].
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 0.9
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency Hz with amplitude 0.9.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// WriteWAV encodes samples in [-1, 1] as a 16-bit PCM WAV file. With more
// than one channel every sample is duplicated across all channels.
func WriteWAV(path string, samples []float64, sampleRate, channels int) error {
	if channels < 1 {
		return fmt.Errorf("channels must be positive, got %d", channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, len(samples)*channels),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		v := int(math.Round(s * 32767))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		for ch := range channels {
			buf.Data[i*channels+ch] = v
		}
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
