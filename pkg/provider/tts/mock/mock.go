// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to verify that the synthesizer driver sends
// sentences in the right order and to feed controlled PCM output without a
// live TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeChunks: [][]byte{{1, 2}, {3, 4}},
//	}
//	ch, err := p.Synthesize(ctx, "Hello.", voice)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxloop/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the sentence passed to Synthesize.
	Text string
	// Voice is the voice profile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
// Zero values for response fields cause methods to return empty streams and
// nil errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeChunks is the sequence of PCM chunks emitted on the channel
	// returned by Synthesize. All chunks are sent before the channel closes.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// FailTexts lists sentences for which Synthesize returns SynthesizeErr
	// even when other sentences succeed. Use it to exercise the skip path.
	FailTexts []string

	// Format is returned by OutputFormat. Defaults to 24kHz pcm_s16le when
	// left zero so tests can feed int16 samples directly.
	Format tts.OutputFormat

	// --- Call records (read after test) ---

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns a channel emitting SynthesizeChunks.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	if p.SynthesizeErr != nil {
		for _, ft := range p.FailTexts {
			if ft == text {
				err := p.SynthesizeErr
				p.mu.Unlock()
				return nil, err
			}
		}
		if len(p.FailTexts) == 0 {
			err := p.SynthesizeErr
			p.mu.Unlock()
			return nil, err
		}
	}
	chunks := make([][]byte, len(p.SynthesizeChunks))
	copy(chunks, p.SynthesizeChunks)
	p.mu.Unlock()

	ch := make(chan []byte, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- c:
			}
		}
	}()
	return ch, nil
}

// OutputFormat returns Format, defaulting to 24kHz pcm_s16le.
func (p *Provider) OutputFormat() tts.OutputFormat {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Format.SampleRate == 0 {
		return tts.OutputFormat{SampleRate: 24000, Encoding: "pcm_s16le"}
	}
	return p.Format
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
