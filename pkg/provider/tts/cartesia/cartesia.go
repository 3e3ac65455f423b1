// Package cartesia provides a Cartesia-backed TTS provider using the Cartesia
// streaming WebSocket API (sonic). It implements the tts.Provider interface.
//
// Each Synthesize call opens its own WebSocket connection, sends one
// synthesis request, and streams the resulting PCM chunks until the server
// signals completion. Connection-per-sentence keeps failure domains small: a
// dropped connection loses one sentence, never a whole reply.
package cartesia

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/MrWong99/voxloop/pkg/provider/tts"
	"github.com/coder/websocket"
)

const (
	cartesiaEndpoint = "wss://api.cartesia.ai/tts/websocket"
	cartesiaVersion  = "2025-04-16"
	defaultModel     = "sonic-2"
	defaultLanguage  = "en"

	defaultSampleRate = 24000
	defaultEncoding   = "pcm_f32le"
)

// Option is a functional option for configuring the Cartesia Provider.
type Option func(*Provider)

// WithModel sets the Cartesia TTS model ID (e.g., "sonic-2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the synthesis language code (e.g., "en").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithOutputFormat sets the PCM output sample rate and encoding.
func WithOutputFormat(sampleRate int, encoding string) Option {
	return func(p *Provider) {
		p.sampleRate = sampleRate
		p.encoding = encoding
	}
}

// Provider implements tts.Provider backed by the Cartesia streaming API.
type Provider struct {
	apiKey     string
	model      string
	language   string
	sampleRate int
	encoding   string
}

var _ tts.Provider = (*Provider)(nil)

// New creates a new Cartesia Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("cartesia tts: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		encoding:   defaultEncoding,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// OutputFormat implements tts.Provider.
func (p *Provider) OutputFormat() tts.OutputFormat {
	return tts.OutputFormat{SampleRate: p.sampleRate, Encoding: p.encoding}
}

// ---- WebSocket message types ----

// synthesisRequest is the JSON payload sent to Cartesia to start synthesis of
// one transcript.
type synthesisRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceRef     `json:"voice"`
	Language     string       `json:"language"`
	OutputFormat outputFormat `json:"output_format"`
	ContextID    string       `json:"context_id,omitempty"`
}

// voiceRef selects the synthesis voice by ID.
type voiceRef struct {
	Mode  string         `json:"mode"`
	ID    string         `json:"id"`
	Speed float64        `json:"__experimental_controls_speed,omitempty"`
}

// outputFormat mirrors the Cartesia output_format object.
type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// synthesisResponse is the JSON message received from Cartesia.
type synthesisResponse struct {
	Type  string `json:"type"`
	Data  string `json:"data"` // base64-encoded PCM
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Synthesize opens a WebSocket to Cartesia, sends one synthesis request, and
// returns a channel emitting raw PCM audio chunks in the configured output
// format.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if text == "" {
		return nil, errors.New("cartesia tts: text must not be empty")
	}
	if voice.ID == "" {
		return nil, errors.New("cartesia tts: voice.ID must not be empty")
	}

	conn, _, err := websocket.Dial(ctx, p.buildURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("cartesia tts: dial: %w", err)
	}

	reqBytes, err := json.Marshal(p.buildRequest(text, voice))
	if err != nil {
		conn.Close(websocket.StatusInternalError, "marshal request")
		return nil, fmt.Errorf("cartesia tts: marshal request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, reqBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "send request")
		return nil, fmt.Errorf("cartesia tts: send request: %w", err)
	}

	audioCh := make(chan []byte, 256)
	go func() {
		defer close(audioCh)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}

			pcm, done := parseResponse(msg)
			if pcm != nil {
				select {
				case audioCh <- pcm:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}()

	return audioCh, nil
}

// buildURL constructs the Cartesia WebSocket endpoint URL. Cartesia
// authenticates WebSocket connections via query parameters.
func (p *Provider) buildURL() string {
	u, _ := url.Parse(cartesiaEndpoint)
	q := u.Query()
	q.Set("api_key", p.apiKey)
	q.Set("cartesia_version", cartesiaVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// buildRequest constructs the synthesis request payload for one transcript.
func (p *Provider) buildRequest(text string, voice tts.VoiceProfile) synthesisRequest {
	return synthesisRequest{
		ModelID:    p.model,
		Transcript: text,
		Voice: voiceRef{
			Mode:  "id",
			ID:    voice.ID,
			Speed: voice.SpeedFactor,
		},
		Language: p.language,
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   p.encoding,
			SampleRate: p.sampleRate,
		},
	}
}

// parseResponse parses a raw Cartesia WebSocket message. It returns the
// decoded PCM payload (nil if the message carries none) and whether the
// stream is complete.
func parseResponse(data []byte) (pcm []byte, done bool) {
	var resp synthesisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	switch resp.Type {
	case "chunk":
		decoded, err := base64.StdEncoding.DecodeString(resp.Data)
		if err != nil {
			return nil, resp.Done
		}
		return decoded, resp.Done
	case "done":
		return nil, true
	case "error":
		// The stream is unusable after an error frame.
		return nil, true
	default:
		// timestamps and other informational frames carry no audio.
		return nil, false
	}
}
