package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/internal/resilience"
	"github.com/MrWong99/voxloop/pkg/audio"
	"github.com/MrWong99/voxloop/pkg/provider/llm"
	"github.com/MrWong99/voxloop/pkg/provider/stt"
	"github.com/MrWong99/voxloop/pkg/provider/tts"
)

// Queue capacities between stages. All queues are bounded so a slow stage
// stalls its producer instead of growing memory without limit.
const (
	utteranceQueue = 4
	sentenceQueue  = 20
	chunkQueue     = 20
)

// DefaultCaptureRate is the microphone sample rate handed to the recognizer.
const DefaultCaptureRate = 16000

// Config assembles the collaborators and tuning knobs of one conversation
// pipeline. Source, Sink, STT, LLM and TTS are required.
type Config struct {
	Source audio.Source
	Sink   audio.Sink
	STT    stt.Provider
	LLM    llm.Provider
	TTS    tts.Provider

	// Voice selects the synthesis voice. A zero value uses the TTS
	// provider's default.
	Voice tts.VoiceProfile

	// CaptureRate is the capture sample rate in Hz. Default:
	// [DefaultCaptureRate].
	CaptureRate int

	// Language is the BCP-47 recognition language hint (e.g., "en").
	Language string

	// SilenceTimeout is the pause that ends a user turn. Default:
	// [DefaultSilenceTimeout].
	SilenceTimeout time.Duration

	// SystemPrompt, Temperature and MaxTokens shape the language model
	// requests. Zero values keep provider defaults.
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// Retry overrides the completion retry policy.
	Retry resilience.RetryConfig

	// Transcript, if set, receives every finished turn.
	Transcript TranscriptSink

	// Playback holds extra playback options (rate, buffer threshold,
	// frame cadence).
	Playback []PlaybackOption

	// Logger defaults to [slog.Default]. Metrics may be nil.
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Pipeline is one live conversation: capture, recognition, segmentation,
// reply generation, synthesis and playback, connected by bounded queues.
type Pipeline struct {
	cfg Config
	log *slog.Logger
}

// New validates cfg and assembles a pipeline. It does not contact any
// collaborator; that happens in Run.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("pipeline: audio source is required")
	case cfg.Sink == nil:
		return nil, errors.New("pipeline: audio sink is required")
	case cfg.STT == nil:
		return nil, errors.New("pipeline: stt provider is required")
	case cfg.LLM == nil:
		return nil, errors.New("pipeline: llm provider is required")
	case cfg.TTS == nil:
		return nil, errors.New("pipeline: tts provider is required")
	}
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = DefaultCaptureRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, log: cfg.Logger}, nil
}

// Run executes the pipeline until the audio source ends, ctx is cancelled,
// or a device error occurs. On a clean source end every queued item drains
// through in order before Run returns: buffered speech is never cut off by
// shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.cfg

	session, err := cfg.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: cfg.CaptureRate,
		Channels:   1,
		Language:   cfg.Language,
	})
	if err != nil {
		return fmt.Errorf("start recognition stream: %w", err)
	}

	frames, err := cfg.Source.Stream(ctx)
	if err != nil {
		if cerr := session.Close(); cerr != nil {
			p.log.Warn("recognition session close failed", "error", cerr)
		}
		return &DeviceError{Device: "capture", Err: err}
	}

	utterances := make(chan Utterance, utteranceQueue)
	sentences := make(chan SentenceUnit, sentenceQueue)
	chunks := make(chan SynthesizedChunk, chunkQueue)

	segmenter := NewSegmenter(session.Fragments(), utterances, cfg.SilenceTimeout, p.log, cfg.Metrics)
	batcher := NewBatcher(utterances, sentences, cfg.LLM, cfg.Metrics,
		WithSystemPrompt(cfg.SystemPrompt),
		WithSampling(cfg.Temperature, cfg.MaxTokens),
		WithTranscriptSink(cfg.Transcript),
		WithRetry(cfg.Retry),
		WithBatcherLogger(p.log),
	)
	synth := NewSynthDriver(sentences, chunks, cfg.TTS, cfg.Voice, p.log, cfg.Metrics)
	playback := NewPlayback(chunks, cfg.Sink, cfg.Metrics,
		append([]PlaybackOption{WithPlaybackLogger(p.log)}, cfg.Playback...)...)

	g, ctx := errgroup.WithContext(ctx)

	// Pump capture frames into the recognizer. Closing the session after
	// the source ends flushes the recognizer's tail and closes the fragment
	// channel, which starts the ordered drain of the downstream stages.
	g.Go(func() error {
		defer func() {
			if err := session.Close(); err != nil {
				p.log.Warn("recognition session close failed", "error", err)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case frame, ok := <-frames:
				if !ok {
					return nil
				}
				if err := session.SendAudio(frame.Data); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return classifyCollaboratorErr("stt send", err)
				}
			}
		}
	})

	g.Go(func() error { return segmenter.Run(ctx) })
	g.Go(func() error { return batcher.Run(ctx) })
	g.Go(func() error { return synth.Run(ctx) })
	g.Go(func() error { return playback.Run(ctx) })

	return g.Wait()
}
