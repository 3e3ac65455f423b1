// Package cartesia provides a Cartesia-backed STT provider using the Cartesia
// streaming WebSocket API (ink-whisper). It implements the stt.Provider
// interface.
package cartesia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/MrWong99/voxloop/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	cartesiaEndpoint  = "wss://api.cartesia.ai/stt/websocket"
	cartesiaVersion   = "2025-04-16"
	defaultModel      = "ink-whisper"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// minVolume and maxSilence tune Cartesia's server-side endpointing.
	minVolume  = 0.15
	maxSilence = 0.5
)

// Option is a functional option for configuring the Cartesia Provider.
type Option func(*Provider)

// WithModel sets the Cartesia STT model to use (e.g., "ink-whisper").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code for recognition (e.g., "en").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithSampleRate sets the audio sample rate in Hz for the provider-level default.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements stt.Provider backed by the Cartesia streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Cartesia Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("cartesia stt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Cartesia.
// It respects cfg.SampleRate and cfg.Language.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("cartesia stt: build URL: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia stt: dial: %w", err)
	}

	sess := &session{
		conn:      conn,
		fragments: make(chan stt.Fragment, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
	}

	sess.wg.Add(2)
	go sess.readLoop(ctx)
	go sess.writeLoop(ctx)

	return sess, nil
}

// buildURL constructs the Cartesia streaming endpoint URL for the given config.
// Cartesia authenticates WebSocket connections via query parameters.
func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(cartesiaEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "pcm_s16le")
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("min_volume", strconv.FormatFloat(minVolume, 'g', -1, 64))
	q.Set("max_silence_duration_secs", strconv.FormatFloat(maxSilence, 'g', -1, 64))
	q.Set("api_key", p.apiKey)
	q.Set("cartesia_version", cartesiaVersion)

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- session ----

// cartesiaResponse is the JSON structure of Cartesia STT WebSocket messages.
type cartesiaResponse struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	IsFinal     bool    `json:"is_final"`
	Probability float64 `json:"probability"`
	Message     string  `json:"message"`
}

// session is a live Cartesia streaming session. It implements stt.SessionHandle.
type session struct {
	conn      *websocket.Conn
	fragments chan stt.Fragment
	audio     chan []byte

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a PCM audio chunk for delivery to Cartesia.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("cartesia stt: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("cartesia stt: session is closed")
	}
}

// Fragments returns the channel of transcript fragments.
func (s *session) Fragments() <-chan stt.Fragment { return s.fragments }

// Close terminates the session cleanly. Cartesia flushes buffered audio on
// "finalize" and acknowledges "done" before the server closes the stream.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte("finalize"))
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte("done"))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Cartesia.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain buffered audio before exiting so the finalize flush
			// covers everything the caller sent.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Cartesia and dispatches transcript
// fragments. The loop exits on a "done" acknowledgement, a read error, or
// context cancellation.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.fragments)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		frag, kind := parseResponse(msg)
		switch kind {
		case msgTranscript:
			select {
			case s.fragments <- frag:
			case <-s.done:
			}
		case msgDone:
			return
		default:
			// flush_done, error, and unknown types carry no text.
		}
	}
}

type msgKind int

const (
	msgIgnore msgKind = iota
	msgTranscript
	msgDone
)

// parseResponse parses a raw Cartesia WebSocket message into a Fragment.
func parseResponse(data []byte) (stt.Fragment, msgKind) {
	var resp cartesiaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Fragment{}, msgIgnore
	}
	switch resp.Type {
	case "transcript":
		if resp.Text == "" {
			return stt.Fragment{}, msgIgnore
		}
		return stt.Fragment{
			Text:       resp.Text,
			IsFinal:    resp.IsFinal,
			Confidence: resp.Probability,
			ReceivedAt: time.Now(),
		}, msgTranscript
	case "done":
		return stt.Fragment{}, msgDone
	default:
		return stt.Fragment{}, msgIgnore
	}
}
