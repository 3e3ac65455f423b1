// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Cartesia) and
// presents a uniform streaming interface. The primary entry point is
// Synthesize, which accepts one sentence of text and returns a channel of raw
// PCM audio chunks as they become available, enabling low-latency pipelining
// between reply segmentation and playback.
//
// Implementations must be safe for concurrent use. The synthesizer driver
// may overlap synthesis of adjacent sentences.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts one sentence of text to speech and returns a
	// channel that emits raw PCM audio byte slices in the provider's
	// OutputFormat as they are synthesised.
	//
	// The returned audio channel is closed by the implementation when the
	// sentence has been fully synthesised or when ctx is cancelled. The
	// caller must drain the channel to avoid blocking the provider's
	// internal goroutines.
	//
	// voice specifies the voice profile to use. Providers should return an
	// error if the requested voice is not available.
	//
	// Returns a non-nil error only if synthesis cannot be started. Errors
	// encountered mid-stream are signalled by closing the audio channel
	// early; callers should check ctx.Err() to distinguish cancellation
	// from provider errors.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (<-chan []byte, error)

	// OutputFormat describes the PCM format of the audio chunks emitted by
	// Synthesize. The result is constant for the lifetime of the Provider.
	OutputFormat() OutputFormat
}
