// Package pipeline implements the streaming conversation pipeline: captured
// audio is transcribed incrementally, transcripts are segmented into
// utterances, a language model produces a streamed reply, the reply is
// re-chunked into sentences and synthesized, and the synthesized audio is
// played back through an adaptively buffered output device.
//
// # Topology
//
// Five stages connected by bounded single-producer/single-consumer channels:
//
//	Audio Source ──frames──▶ STT session ──fragments──▶ Segmenter
//	  ──utterances──▶ Batcher ──sentences──▶ SynthDriver
//	  ──chunks──▶ Playback
//
// Control flow is strictly forward. Shutdown propagates by closing the audio
// source stream: each stage drains its input, closes its output, and exits,
// so the channels close in topological order. Every stage runs as one
// goroutine under an errgroup; only device failures return an error (which
// cancels the group), all other failures are contained in their stage.
//
// # Ordering
//
// Turn ids strictly increase and tag every artifact of a turn. Within a
// turn, sentences and synthesized chunks are forwarded in strict arrival
// order; across turns, turn N+1 never overtakes turn N. The only permitted
// overlap is the synthesizer driver's adjacent-sentence lookahead, which
// starts the next sentence's synthesis while the previous sentence's chunks
// drain, without reordering output.
package pipeline
