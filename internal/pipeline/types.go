package pipeline

import (
	"time"

	"github.com/MrWong99/voxloop/pkg/audio"
)

// Utterance is the finalized text of one user turn, as determined by the
// segmenter. The turn id is assigned later by the batcher when the utterance
// is accepted; the segmenter only establishes text and timing.
type Utterance struct {
	// Text is the ordered concatenation of committed fragment text.
	Text string

	// Start is when the first fragment of this utterance arrived.
	Start time.Time

	// End is when the utterance was finalized (final fragment or silence
	// timer fire).
	End time.Time
}

// SentenceUnit is a synthesis-ready contiguous span of assistant reply text.
type SentenceUnit struct {
	// Text is the complete sentence, including its terminal punctuation
	// when one was present in the stream.
	Text string

	// TurnID ties the sentence to its turn.
	TurnID uint64
}

// SynthesizedChunk is raw PCM audio produced for part of one sentence.
type SynthesizedChunk struct {
	// PCM is raw audio in the synthesis provider's output encoding.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Encoding is the PCM sample encoding of Data.
	Encoding audio.Encoding

	// TurnID ties the chunk to its turn.
	TurnID uint64

	// Seq is the ascending per-turn sequence number. Chunks must be played
	// in (TurnID, Seq) order.
	Seq uint64
}
