package stt

import "time"

// Fragment is one transcript fragment emitted by an STT session.
type Fragment struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) fragment. Finals commit text to the conversation; partials
	// only reset silence tracking.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// ReceivedAt is the wall-clock time the fragment arrived from the
	// provider. The segmenter uses it for silence accounting and latency
	// metrics.
	ReceivedAt time.Time
}
