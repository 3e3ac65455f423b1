package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/pkg/audio"
	"github.com/MrWong99/voxloop/pkg/provider/tts"
)

// SynthDriver converts reply sentences into ordered PCM chunks.
//
// Sentences are synthesized one at a time, but while the current sentence's
// audio is draining the driver may start synthesis of the directly following
// sentence. The lookahead is exactly one sentence deep: audio is always
// forwarded in (TurnID, Seq) order, and the overlap only hides the
// synthesis startup latency between sentences.
//
// A sentence whose synthesis cannot be started is skipped with a warning;
// the reply continues with the next sentence.
type SynthDriver struct {
	in       <-chan SentenceUnit
	out      chan<- SynthesizedChunk
	provider tts.Provider
	voice    tts.VoiceProfile
	log      *slog.Logger
	metrics  *observe.Metrics
}

// NewSynthDriver creates a driver reading sentences from in and writing
// audio chunks to out. Run closes out on exit.
func NewSynthDriver(in <-chan SentenceUnit, out chan<- SynthesizedChunk, provider tts.Provider, voice tts.VoiceProfile, log *slog.Logger, m *observe.Metrics) *SynthDriver {
	if log == nil {
		log = slog.Default()
	}
	return &SynthDriver{in: in, out: out, provider: provider, voice: voice, log: log, metrics: m}
}

// startedSynth is an in-flight synthesis for one sentence.
type startedSynth struct {
	unit  SentenceUnit
	audio <-chan []byte
	begin time.Time
}

// Run processes sentences until the input channel closes or ctx is
// cancelled.
func (d *SynthDriver) Run(ctx context.Context) error {
	defer close(d.out)

	format := d.provider.OutputFormat()
	enc := audio.Encoding(format.Encoding)

	var (
		next     *startedSynth
		closed   bool
		lastTurn uint64
		seq      uint64
	)

	for {
		var cur *startedSynth
		switch {
		case next != nil:
			cur, next = next, nil
		case closed:
			return nil
		default:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case unit, ok := <-d.in:
				if !ok {
					return nil
				}
				cur = d.start(ctx, unit)
			}
		}
		if cur == nil {
			// Synthesis could not be started; the sentence is skipped.
			continue
		}

		if cur.unit.TurnID != lastTurn {
			lastTurn = cur.unit.TurnID
			seq = 0
		}

		chunks := 0
	drain:
		for {
			var (
				pcm []byte
				ok  bool
			)
			if next == nil && !closed {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case pcm, ok = <-cur.audio:
				case unit, uok := <-d.in:
					if !uok {
						closed = true
						continue
					}
					next = d.start(ctx, unit)
					continue
				}
			} else {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case pcm, ok = <-cur.audio:
				}
			}
			if !ok {
				break drain
			}
			seq++
			chunk := SynthesizedChunk{
				PCM:        pcm,
				SampleRate: format.SampleRate,
				Encoding:   enc,
				TurnID:     cur.unit.TurnID,
				Seq:        seq,
			}
			select {
			case d.out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			chunks++
		}

		if d.metrics != nil {
			d.metrics.TTSDuration.Record(ctx, time.Since(cur.begin).Seconds())
		}
		if chunks == 0 && ctx.Err() == nil {
			// An early channel close without any audio is a mid-stream
			// provider failure.
			d.log.Warn("synthesis produced no audio, skipping sentence",
				"turn", cur.unit.TurnID, "text", cur.unit.Text)
			if d.metrics != nil {
				d.metrics.SynthFailures.Add(ctx, 1)
			}
		}
	}
}

// start begins synthesis for one sentence. Returns nil if the provider
// rejected the request; the failure is logged and counted.
func (d *SynthDriver) start(ctx context.Context, unit SentenceUnit) *startedSynth {
	audioCh, err := d.provider.Synthesize(ctx, unit.Text, d.voice)
	if err != nil {
		d.log.Warn("synthesis failed, skipping sentence",
			"turn", unit.TurnID, "text", unit.Text, "error", err)
		if d.metrics != nil {
			d.metrics.SynthFailures.Add(ctx, 1)
			d.metrics.RecordProviderError(ctx, "tts", "synthesize")
		}
		return nil
	}
	return &startedSynth{unit: unit, audio: audioCh, begin: time.Now()}
}
