package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/pkg/provider/stt"
)

// DefaultSilenceTimeout is the silence duration after the last transcript
// fragment that ends a user turn.
const DefaultSilenceTimeout = time.Second

// Segmenter turns the recognizer's fragment stream into complete utterances.
//
// It is a two-state machine: Idle (no buffered text) and Accumulating
// (buffered text, silence timer armed). Every partial fragment supersedes the
// previous partial and re-arms the timer; a final fragment emits immediately
// without waiting for the timer. If the timer fires first, the buffered
// partial becomes the utterance. An empty buffer at timer fire emits nothing.
//
// Timeout-based turn-taking is a heuristic, not voice-activity detection: a
// user pausing longer than the timeout mid-sentence produces a false turn
// end. That is an accepted degradation of the design.
type Segmenter struct {
	in      <-chan stt.Fragment
	out     chan<- Utterance
	timeout time.Duration
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewSegmenter creates a segmenter reading fragments from in and writing
// utterances to out. Run closes out on exit. A zero timeout selects
// [DefaultSilenceTimeout].
func NewSegmenter(in <-chan stt.Fragment, out chan<- Utterance, timeout time.Duration, log *slog.Logger, m *observe.Metrics) *Segmenter {
	if timeout <= 0 {
		timeout = DefaultSilenceTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Segmenter{in: in, out: out, timeout: timeout, log: log, metrics: m}
}

// Run processes fragments until the input channel closes or ctx is
// cancelled. A pending partial at input close is flushed as a last utterance
// so trailing speech is not lost.
func (s *Segmenter) Run(ctx context.Context) error {
	defer close(s.out)

	timer := time.NewTimer(s.timeout)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var (
		pending string
		armed   bool
		start   time.Time
	)

	emit := func(text, cause string) bool {
		utt := Utterance{Text: text, Start: start, End: time.Now()}
		pending, start, armed = "", time.Time{}, false

		select {
		case s.out <- utt:
		case <-ctx.Done():
			return false
		}

		s.log.Debug("utterance emitted", "cause", cause, "text", text)
		if s.metrics != nil {
			s.metrics.Utterances.Add(ctx, 1, metric.WithAttributes(observe.Attr("cause", cause)))
			if !utt.Start.IsZero() {
				s.metrics.STTDuration.Record(ctx, utt.End.Sub(utt.Start).Seconds())
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			armed = false
			// Empty buffer at timer fire is a no-op.
			if pending == "" {
				continue
			}
			if !emit(pending, "timeout") {
				return ctx.Err()
			}

		case frag, ok := <-s.in:
			if !ok {
				if pending != "" {
					emit(pending, "eof")
				}
				return nil
			}

			text := strings.TrimSpace(frag.Text)
			if text == "" {
				// Recognizers may emit contentless fragments at
				// stream start; ignore without touching the timer.
				continue
			}

			if start.IsZero() {
				start = frag.ReceivedAt
				if start.IsZero() {
					start = time.Now()
				}
			}

			if frag.IsFinal {
				if armed {
					stopTimer(timer)
					armed = false
				}
				if !emit(text, "final") {
					return ctx.Err()
				}
				continue
			}

			// Partial: supersede the previous partial and re-arm.
			pending = text
			if armed {
				stopTimer(timer)
			}
			timer.Reset(s.timeout)
			armed = true
		}
	}
}

// stopTimer stops t and drains its channel if it already fired.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
