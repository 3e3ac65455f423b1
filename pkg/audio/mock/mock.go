// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Sink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control return values.
//
// Typical usage:
//
//	frames := make(chan audio.Frame, 4)
//	src := &mock.Source{StreamResult: frames}
//	sink := &mock.Sink{}
//	// feed frames, run the stage, then assert on sink.WriteFrameCalls.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxloop/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// StreamResult is the channel returned by Stream. Tests feed frames into
	// it and close it to simulate device stop.
	StreamResult chan audio.Frame

	// StreamError is returned by Stream.
	StreamError error

	// CallCountStream records how many times Stream was called.
	CallCountStream int
}

var _ audio.Source = (*Source)(nil)

// Stream implements [audio.Source]. Records the call and returns
// StreamResult / StreamError.
func (s *Source) Stream(_ context.Context) (<-chan audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStream++
	if s.StreamError != nil {
		return nil, s.StreamError
	}
	return s.StreamResult, nil
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// StartError is returned by Start.
	StartError error

	// WriteFrameError is returned by WriteFrame. When non-nil every write
	// fails, simulating a dead output device.
	WriteFrameError error

	// CloseError is returned by Close.
	CloseError error

	// StartCalls records the format of every Start invocation.
	StartCalls []audio.Format

	// WriteFrameCalls records a copy of the PCM payload of every WriteFrame
	// invocation, in order.
	WriteFrameCalls [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ audio.Sink = (*Sink)(nil)

// Start implements [audio.Sink]. Records the call and returns StartError.
func (s *Sink) Start(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls = append(s.StartCalls, format)
	return s.StartError
}

// WriteFrame implements [audio.Sink]. Records a copy of pcm and returns
// WriteFrameError.
func (s *Sink) WriteFrame(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.WriteFrameCalls = append(s.WriteFrameCalls, cp)
	return s.WriteFrameError
}

// Close implements [audio.Sink]. Records the call and returns CloseError.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// Written concatenates the payloads of all recorded WriteFrame calls.
func (s *Sink) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, frame := range s.WriteFrameCalls {
		out = append(out, frame...)
	}
	return out
}

// Reset clears all recorded calls and errors, allowing reuse across subtests.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartError, s.WriteFrameError, s.CloseError = nil, nil, nil
	s.StartCalls, s.WriteFrameCalls = nil, nil
	s.CallCountClose = 0
}
