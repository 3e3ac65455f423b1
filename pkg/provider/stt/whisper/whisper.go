// Package whisper provides a local, offline STT provider backed by the
// whisper.cpp CGO bindings. It implements the stt.Provider interface.
//
// Unlike streaming cloud providers, whisper.cpp transcribes whole speech
// segments. The session therefore buffers incoming PCM audio, tracks speech
// energy, and runs inference when it has observed enough consecutive silence
// after speech. Every result is emitted as a final fragment; the model never
// produces interim guesses.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voxloop/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// rmsThreshold is the root-mean-square energy level (in 16-bit PCM
	// sample units) below which a chunk counts as silence.
	rmsThreshold = 300.0

	defaultLanguage      = "en"
	defaultSampleRate    = 16000
	defaultFlushSilence  = 500 * time.Millisecond
	defaultMaxBufferSpan = 10 * time.Second
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code for transcription (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz. This must match the actual
// sample rate of PCM data delivered via SendAudio. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithFlushSilence sets the consecutive-silence duration that triggers a
// flush of the accumulated speech buffer to whisper.cpp. Defaults to 500ms.
func WithFlushSilence(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.flushSilence = d
		}
	}
}

// WithMaxBufferSpan sets the maximum buffered audio duration before a forced
// flush. Defaults to 10s.
func WithMaxBufferSpan(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.maxBufferSpan = d
		}
	}
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO). The
// model is loaded once at startup and shared across all sessions.
type Provider struct {
	model    whisperlib.Model
	language string

	sampleRate    int
	flushSilence  time.Duration
	maxBufferSpan time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:         model,
		language:      defaultLanguage,
		sampleRate:    defaultSampleRate,
		flushSilence:  defaultFlushSilence,
		maxBufferSpan: defaultMaxBufferSpan,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. It respects cfg.SampleRate
// and cfg.Language; if those are zero/empty the provider-level defaults apply.
//
// Each session creates its own whisper.cpp context per inference from the
// shared model, so multiple sessions can run concurrently without
// interference.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}

	s := &session{
		model:         p.model,
		language:      lang,
		sampleRate:    sr,
		flushSilence:  p.flushSilence,
		maxBufferSpan: p.maxBufferSpan,

		audio:     make(chan []byte, 256),
		fragments: make(chan stt.Fragment, 64),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// ---- session ----------------------------------------------------------------

// session is a live whisper transcription session. All mutable state that
// drives silence detection and buffering is confined to the processLoop
// goroutine.
type session struct {
	model         whisperlib.Model
	language      string
	sampleRate    int
	flushSilence  time.Duration
	maxBufferSpan time.Duration

	audio     chan []byte
	fragments chan stt.Fragment

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// silence analysis and buffering.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Fragments returns the channel of transcript fragments. Only finals are
// emitted.
func (s *session) Fragments() <-chan stt.Fragment { return s.fragments }

// Close terminates the session, flushing any pending speech audio first.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for silence detection,
// audio buffering, and inference dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.fragments)

	var (
		buffer    []byte
		hadSpeech bool
		silence   time.Duration
	)

	bytesPerSec := s.sampleRate * 2
	maxBufferBytes := int(int64(bytesPerSec) * int64(s.maxBufferSpan) / int64(time.Second))

	doFlush := func() {
		pcm := buffer
		speech := hadSpeech
		buffer, hadSpeech, silence = nil, false, 0
		if len(pcm) == 0 || !speech {
			return
		}

		text, err := s.infer(pcm)
		if err != nil {
			slog.Error("whisper inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}

		select {
		case s.fragments <- stt.Fragment{Text: text, IsFinal: true, ReceivedAt: time.Now()}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			doFlush()
			return

		case <-s.done:
			doFlush()
			return

		case chunk, ok := <-s.audio:
			if !ok {
				doFlush()
				return
			}

			chunkDur := time.Duration(len(chunk)) * time.Second / time.Duration(bytesPerSec)

			if computeRMS(chunk) < rmsThreshold {
				if hadSpeech {
					silence += chunkDur
					buffer = append(buffer, chunk...)
					if silence >= s.flushSilence {
						doFlush()
					}
				}
			} else {
				hadSpeech = true
				silence = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush()
				}
			}
		}
	}
}

// infer converts the buffered PCM audio to float32, runs whisper.cpp
// inference using a fresh context, and returns the concatenated text.
// Whisper contexts are not thread-safe but the model can be shared.
func (s *session) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- PCM helpers ------------------------------------------------------------

// pcmToFloat32 converts 16-bit signed little-endian mono PCM audio to float32
// samples normalised to [-1.0, 1.0]. A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}

// computeRMS returns the root-mean-square energy of a 16-bit PCM chunk in
// sample units.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
