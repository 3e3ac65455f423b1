// Package audio defines the frame types, PCM conversion helpers, and buffer
// primitives shared by every stage of the voxloop pipeline.
//
// Audio flows through the pipeline as little-endian PCM. Capture frames are
// 16-bit mono; synthesis output may arrive as 32-bit float mono and is
// converted before playback. The two device-facing abstractions are:
//
//   - [Source] — produces a stream of fixed-duration capture frames.
//   - [Sink] — accepts fixed-size playback frames at a steady cadence.
//
// Concrete implementations (WAV files, test mocks) live in this package and
// in the mock subpackage. This package lives under pkg/ because provider
// adapters outside the repository are expected to consume these types.
package audio

import (
	"context"
	"time"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Frame is one fixed-duration unit of captured audio.
type Frame struct {
	// Data is raw little-endian int16 PCM.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for capture, 24000 for playback).
	SampleRate int

	// Duration is the nominal length of this frame.
	Duration time.Duration

	// Seq is a monotonic sequence number assigned by the source.
	Seq uint64
}

// Samples returns the number of int16 samples contained in the frame.
func (f Frame) Samples() int { return len(f.Data) / 2 }

// Source produces a sequence of capture frames.
//
// Implementations must close the returned channel when the underlying device
// stops or ctx is cancelled. A stopped source is fatal to the pipeline; a
// transient device underrun is logged by the implementation and the frame
// skipped.
type Source interface {
	// Stream starts capture and returns a read-only channel of frames.
	// The channel is owned by the implementation and closed on end of
	// stream or cancellation.
	Stream(ctx context.Context) (<-chan Frame, error)
}

// Sink is an audio output device accepting PCM frames at a fixed cadence.
//
// Implementations must be usable from a single goroutine (the playback
// manager); they need not be safe for concurrent use.
type Sink interface {
	// Start prepares the device for the given output format. It must be
	// called exactly once before the first WriteFrame.
	Start(format Format) error

	// WriteFrame plays one fixed-size frame of little-endian int16 PCM.
	// Device underruns and overruns are reported as observable events by
	// the implementation, never as mangled data.
	WriteFrame(pcm []byte) error

	// Close flushes pending audio and releases the device.
	Close() error
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a streaming channel's data is
// no longer needed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
