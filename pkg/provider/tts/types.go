package tts

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 or 1.0 = default).
	SpeedFactor float64
}

// OutputFormat describes the raw PCM format a provider emits.
type OutputFormat struct {
	// SampleRate in Hz (e.g., 24000).
	SampleRate int

	// Encoding is the PCM sample encoding, e.g. "pcm_f32le" or "pcm_s16le".
	Encoding string
}
