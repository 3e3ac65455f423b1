package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voxloop/internal/observe"
	"github.com/MrWong99/voxloop/internal/resilience"
	"github.com/MrWong99/voxloop/pkg/provider/llm"
)

// FallbackReply is spoken when the language model cannot produce any reply
// for a turn, so the user is never met with silence.
const FallbackReply = "Sorry, I'm having trouble responding right now."

// TranscriptSink receives finished turns for durable logging. Implementations
// must tolerate being called from a single goroutine; errors are logged and
// do not affect the conversation.
type TranscriptSink interface {
	LogTurn(ctx context.Context, turnID uint64, role, text string) error
}

// BatcherOption customizes a [Batcher].
type BatcherOption func(*Batcher)

// WithSystemPrompt sets the system prompt prepended to every completion
// request.
func WithSystemPrompt(prompt string) BatcherOption {
	return func(b *Batcher) { b.systemPrompt = prompt }
}

// WithSampling sets the model sampling parameters. Zero values keep the
// provider defaults.
func WithSampling(temperature float64, maxTokens int) BatcherOption {
	return func(b *Batcher) { b.temperature = temperature; b.maxTokens = maxTokens }
}

// WithTranscriptSink attaches a durable transcript log.
func WithTranscriptSink(sink TranscriptSink) BatcherOption {
	return func(b *Batcher) { b.transcript = sink }
}

// WithRetry overrides the retry policy for completion attempts.
func WithRetry(cfg resilience.RetryConfig) BatcherOption {
	return func(b *Batcher) { b.retry = cfg }
}

// WithBatcherLogger sets the logger. Default: [slog.Default].
func WithBatcherLogger(log *slog.Logger) BatcherOption {
	return func(b *Batcher) { b.log = log }
}

// Batcher turns completed utterances into a stream of reply sentences.
//
// For each utterance it appends a user turn to the conversation history,
// streams a completion from the language model, and re-segments the token
// deltas into sentences tagged with the turn id. At most one completion is in
// flight: the next utterance is not read until the current turn's reply is
// fully emitted, which keeps replies strictly ordered.
//
// Failure handling is asymmetric around the first emitted sentence. Before
// anything has been spoken the whole request is retried with backoff; once a
// sentence is out, a mid-stream failure ends the reply early with whatever
// was produced, because re-sending would speak duplicated text.
type Batcher struct {
	in       <-chan Utterance
	out      chan<- SentenceUnit
	provider llm.Provider
	history  *ConversationHistory

	systemPrompt string
	temperature  float64
	maxTokens    int
	transcript   TranscriptSink
	retry        resilience.RetryConfig
	log          *slog.Logger
	metrics      *observe.Metrics

	turnID uint64
}

// NewBatcher creates a batcher reading utterances from in and writing
// sentences to out. Run closes out on exit.
func NewBatcher(in <-chan Utterance, out chan<- SentenceUnit, provider llm.Provider, m *observe.Metrics, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		in:       in,
		out:      out,
		provider: provider,
		history:  NewConversationHistory(),
		retry:    resilience.RetryConfig{Name: "llm completion"},
		log:      slog.Default(),
		metrics:  m,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// History exposes the conversation history for inspection. The batcher
// remains the sole writer.
func (b *Batcher) History() *ConversationHistory { return b.history }

// Run processes utterances until the input channel closes or ctx is
// cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	defer close(b.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case utt, ok := <-b.in:
			if !ok {
				return nil
			}
			b.turnID++
			b.history.Append(llm.RoleUser, utt.Text)
			b.logTurn(ctx, b.turnID, llm.RoleUser, utt.Text)

			reply, err := b.respond(ctx, b.turnID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// respond already emitted the fallback sentence.
				b.log.Error("turn degraded", "turn", b.turnID, "error", err)
			}
			b.history.Append(llm.RoleAssistant, reply)
			b.logTurn(ctx, b.turnID, llm.RoleAssistant, reply)
			if b.metrics != nil && !utt.End.IsZero() {
				b.metrics.TurnDuration.Record(ctx, time.Since(utt.End).Seconds())
			}
		}
	}
}

// respond streams one completion for the current history and emits its
// sentences. It returns the full reply text recorded into history, which is
// the fallback line when every attempt failed and a partial reply when the
// stream broke after sentences were already out.
func (b *Batcher) respond(ctx context.Context, turnID uint64) (string, error) {
	start := time.Now()
	var partial string

	cfg := b.retry
	cfg.OnRetry = func(retry int, err error) {
		if b.metrics != nil {
			b.metrics.LLMRetries.Add(ctx, 1)
		}
	}

	reply, err := resilience.RetryWithResult(ctx, cfg, func() (string, error) {
		text, emitted, streamErr := b.streamOnce(ctx, turnID)
		if streamErr == nil {
			return text, nil
		}
		if emitted > 0 {
			// Sentences are already on their way to the speaker;
			// a retry would duplicate them.
			partial = text
			return "", resilience.Abort(streamErr)
		}
		if IsPermanent(streamErr) {
			return "", resilience.Abort(streamErr)
		}
		return "", streamErr
	})

	if b.metrics != nil {
		b.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}

	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return partial, err
	}
	if b.metrics != nil {
		b.metrics.RecordProviderError(ctx, "llm", "completion")
	}
	if partial != "" {
		return partial, err
	}

	// Nothing was spoken for this turn: degrade with the fallback line.
	if !b.emit(ctx, SentenceUnit{Text: FallbackReply, TurnID: turnID}, "fallback") {
		return partial, ctx.Err()
	}
	return FallbackReply, err
}

// streamOnce performs a single completion attempt, emitting sentences as they
// become complete. It returns the accumulated reply text and the number of
// sentences emitted so far, so the caller can tell a clean retry from a
// partially spoken turn.
func (b *Batcher) streamOnce(ctx context.Context, turnID uint64) (string, int, error) {
	req := llm.CompletionRequest{
		Messages:     b.history.Messages(),
		SystemPrompt: b.systemPrompt,
		Temperature:  b.temperature,
		MaxTokens:    b.maxTokens,
	}

	chunks, err := b.provider.StreamCompletion(ctx, req)
	if err != nil {
		return "", 0, classifyCollaboratorErr("llm stream start", err)
	}

	var (
		sp      splitter
		full    strings.Builder
		emitted int
	)

	for chunk := range chunks {
		if chunk.FinishReason == llm.FinishError {
			return full.String(), emitted,
				classifyCollaboratorErr("llm stream", errors.New(chunk.Text))
		}
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			for _, sentence := range sp.push(chunk.Text) {
				if !b.emit(ctx, SentenceUnit{Text: sentence, TurnID: turnID}, "terminal") {
					return full.String(), emitted, ctx.Err()
				}
				emitted++
			}
		}
		if chunk.FinishReason != "" {
			break
		}
	}
	if ctx.Err() != nil {
		return full.String(), emitted, ctx.Err()
	}

	// Trailing text without terminal punctuation is still spoken.
	if rest := sp.flush(); rest != "" {
		if !b.emit(ctx, SentenceUnit{Text: rest, TurnID: turnID}, "trailing") {
			return full.String(), emitted, ctx.Err()
		}
		emitted++
	}
	return full.String(), emitted, nil
}

// emit sends one sentence downstream. Returns false if ctx was cancelled.
func (b *Batcher) emit(ctx context.Context, unit SentenceUnit, kind string) bool {
	select {
	case b.out <- unit:
	case <-ctx.Done():
		return false
	}
	b.log.Debug("sentence emitted", "turn", unit.TurnID, "kind", kind, "text", unit.Text)
	if b.metrics != nil {
		b.metrics.Sentences.Add(ctx, 1, metric.WithAttributes(observe.Attr("kind", kind)))
	}
	return true
}

// logTurn writes one turn to the transcript sink, if configured.
func (b *Batcher) logTurn(ctx context.Context, turnID uint64, role, text string) {
	if b.transcript == nil {
		return
	}
	if err := b.transcript.LogTurn(ctx, turnID, role, text); err != nil {
		b.log.Warn("transcript write failed", "turn", turnID, "role", role, "error", err)
	}
}
