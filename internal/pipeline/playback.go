package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/pkg/audio"
)

const (
	// DefaultMinBufferSamples is the fill level required before playback
	// starts or resumes: 200ms at 24kHz.
	DefaultMinBufferSamples = 4800

	// DefaultPlaybackFrame is the cadence at which frames are handed to the
	// output sink.
	DefaultPlaybackFrame = 20 * time.Millisecond

	// DefaultPlaybackRate is the output device sample rate in Hz.
	DefaultPlaybackRate = 24000
)

// PlaybackOption customizes a [Playback].
type PlaybackOption func(*Playback)

// WithPlaybackRate sets the output sample rate. Incoming chunks at other
// rates are resampled.
func WithPlaybackRate(rate int) PlaybackOption {
	return func(p *Playback) { p.rate = rate }
}

// WithMinBuffer sets the fill threshold in samples that gates the start and
// resumption of playback.
func WithMinBuffer(samples int) PlaybackOption {
	return func(p *Playback) { p.minBuffer = samples }
}

// WithPlaybackFrame sets the frame cadence.
func WithPlaybackFrame(d time.Duration) PlaybackOption {
	return func(p *Playback) { p.frameDur = d }
}

// WithPlaybackLogger sets the logger. Default: [slog.Default].
func WithPlaybackLogger(log *slog.Logger) PlaybackOption {
	return func(p *Playback) { p.log = log }
}

// Playback feeds synthesized audio to the output sink at a steady cadence.
//
// It is a two-state machine. In Filling, incoming chunks accumulate in the
// ring and nothing is played until the fill level reaches the minimum buffer
// threshold. In Playing, one frame is popped per tick; running dry mid-frame
// is an underrun that switches back to Filling, and resumption again requires
// the full threshold, never a partial fill.
//
// Backpressure is lossless. When the ring is full the remainder of a chunk is
// held and the input channel is not read, which stalls the synthesis driver
// through the bounded queue. Audio is never dropped to make room.
//
// A sink failure is a device error and terminates the pipeline.
type Playback struct {
	in   <-chan SynthesizedChunk
	sink audio.Sink

	rate      int
	minBuffer int
	frameDur  time.Duration
	log       *slog.Logger
	metrics   *observe.Metrics

	ring *audio.Ring
}

// NewPlayback creates a playback manager reading chunks from in and writing
// frames to sink.
func NewPlayback(in <-chan SynthesizedChunk, sink audio.Sink, m *observe.Metrics, opts ...PlaybackOption) *Playback {
	p := &Playback{
		in:        in,
		sink:      sink,
		rate:      DefaultPlaybackRate,
		minBuffer: DefaultMinBufferSamples,
		frameDur:  DefaultPlaybackFrame,
		log:       slog.Default(),
		metrics:   m,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ring = audio.NewRing(p.minBuffer * 4)
	return p
}

// Run plays chunks until the input channel closes and the buffer drains, or
// ctx is cancelled.
func (p *Playback) Run(ctx context.Context) error {
	if err := p.sink.Start(audio.Format{SampleRate: p.rate, Channels: 1}); err != nil {
		return &DeviceError{Device: "playback", Err: err}
	}
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.log.Warn("playback sink close failed", "error", err)
		}
	}()

	ticker := time.NewTicker(p.frameDur)
	defer ticker.Stop()

	frameSamples := p.rate * int(p.frameDur) / int(time.Second)
	frame := make([]int16, frameSamples)

	var (
		pending   []int16 // chunk remainder that did not fit the ring
		playing   bool
		inputDone bool
	)

	for {
		// Holding a remainder disables the input case, which is how
		// backpressure reaches the synthesis driver.
		var in <-chan SynthesizedChunk
		if len(pending) == 0 && !inputDone {
			in = p.in
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-in:
			if !ok {
				inputDone = true
				// Remaining audio is played out even below the
				// threshold; there is nothing more to wait for.
				if !playing && p.ring.Len() > 0 {
					playing = true
				}
				continue
			}
			pending = p.fill(ctx, p.decode(chunk))
			if !playing && p.ring.Len() >= p.minBuffer {
				playing = true
				p.log.Debug("playback started", "buffered", p.ring.Len())
			}

		case <-ticker.C:
			if len(pending) > 0 {
				pending = p.fill(ctx, pending)
			}
			if !playing {
				if inputDone && p.ring.Len() == 0 && len(pending) == 0 {
					return nil
				}
				continue
			}

			n := p.ring.Read(frame)
			if p.metrics != nil && n > 0 {
				p.metrics.PlaybackFill.Add(ctx, -int64(n))
			}
			if n < frameSamples {
				clear(frame[n:])
				if !inputDone {
					playing = false
					p.log.Warn("playback underrun, refilling", "got", n, "want", frameSamples)
					if p.metrics != nil {
						p.metrics.PlaybackUnderruns.Add(ctx, 1)
					}
				}
			}
			if n > 0 {
				if err := p.sink.WriteFrame(audio.Int16ToBytes(frame)); err != nil {
					return &DeviceError{Device: "playback", Err: err}
				}
			}
			if inputDone && p.ring.Len() == 0 && len(pending) == 0 {
				return nil
			}
		}
	}
}

// decode converts a chunk to int16 samples at the output rate.
func (p *Playback) decode(chunk SynthesizedChunk) []int16 {
	samples := audio.DecodeSamples(chunk.PCM, chunk.Encoding)
	if chunk.SampleRate != 0 && chunk.SampleRate != p.rate {
		samples = audio.ResampleMono16(samples, chunk.SampleRate, p.rate)
	}
	return samples
}

// fill writes as many samples as fit into the ring and returns the
// remainder.
func (p *Playback) fill(ctx context.Context, samples []int16) []int16 {
	n := p.ring.Write(samples)
	if p.metrics != nil && n > 0 {
		p.metrics.PlaybackFill.Add(ctx, int64(n))
	}
	return samples[n:]
}
