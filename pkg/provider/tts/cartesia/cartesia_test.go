package cartesia

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/MrWong99/voxloop/pkg/provider/tts"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestBuildURL(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, err := url.Parse(p.buildURL())
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()
	if q.Get("api_key") != "test-key" {
		t.Errorf("api_key = %q, want test-key", q.Get("api_key"))
	}
	if q.Get("cartesia_version") != cartesiaVersion {
		t.Errorf("cartesia_version = %q, want %q", q.Get("cartesia_version"), cartesiaVersion)
	}
}

func TestBuildRequest_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := p.buildRequest("Hello there.", tts.VoiceProfile{ID: "voice-1"})

	if req.ModelID != "sonic-2" {
		t.Errorf("model = %q, want sonic-2", req.ModelID)
	}
	if req.Transcript != "Hello there." {
		t.Errorf("transcript = %q", req.Transcript)
	}
	if req.Voice.Mode != "id" || req.Voice.ID != "voice-1" {
		t.Errorf("unexpected voice ref: %+v", req.Voice)
	}
	if req.OutputFormat.Container != "raw" {
		t.Errorf("container = %q, want raw", req.OutputFormat.Container)
	}
	if req.OutputFormat.Encoding != "pcm_f32le" {
		t.Errorf("encoding = %q, want pcm_f32le", req.OutputFormat.Encoding)
	}
	if req.OutputFormat.SampleRate != 24000 {
		t.Errorf("sample rate = %d, want 24000", req.OutputFormat.SampleRate)
	}
}

func TestBuildRequest_CustomFormat(t *testing.T) {
	p, err := New("key", WithModel("sonic-turbo"), WithLanguage("de"), WithOutputFormat(16000, "pcm_s16le"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := p.buildRequest("Hallo.", tts.VoiceProfile{ID: "v"})
	if req.ModelID != "sonic-turbo" {
		t.Errorf("model = %q, want sonic-turbo", req.ModelID)
	}
	if req.Language != "de" {
		t.Errorf("language = %q, want de", req.Language)
	}
	if req.OutputFormat.SampleRate != 16000 || req.OutputFormat.Encoding != "pcm_s16le" {
		t.Errorf("unexpected output format: %+v", req.OutputFormat)
	}
}

func TestOutputFormat(t *testing.T) {
	p, _ := New("key")
	got := p.OutputFormat()
	if got.SampleRate != 24000 || got.Encoding != "pcm_f32le" {
		t.Errorf("unexpected format: %+v", got)
	}
}

func TestParseResponse_Chunk(t *testing.T) {
	audio := []byte{1, 2, 3, 4}
	raw := []byte(`{"type":"chunk","data":"` + base64.StdEncoding.EncodeToString(audio) + `","done":false}`)

	pcm, done := parseResponse(raw)
	if done {
		t.Error("expected done=false")
	}
	if len(pcm) != 4 || pcm[0] != 1 {
		t.Errorf("unexpected pcm: %v", pcm)
	}
}

func TestParseResponse_FinalChunk(t *testing.T) {
	raw := []byte(`{"type":"chunk","data":"` + base64.StdEncoding.EncodeToString([]byte{9}) + `","done":true}`)

	pcm, done := parseResponse(raw)
	if !done {
		t.Error("expected done=true")
	}
	if len(pcm) != 1 || pcm[0] != 9 {
		t.Errorf("unexpected pcm: %v", pcm)
	}
}

func TestParseResponse_Done(t *testing.T) {
	pcm, done := parseResponse([]byte(`{"type":"done"}`))
	if pcm != nil || !done {
		t.Errorf("got pcm=%v done=%v, want nil/true", pcm, done)
	}
}

func TestParseResponse_Error(t *testing.T) {
	pcm, done := parseResponse([]byte(`{"type":"error","error":"voice not found"}`))
	if pcm != nil || !done {
		t.Errorf("got pcm=%v done=%v, want nil/true", pcm, done)
	}
}

func TestParseResponse_TimestampsIgnored(t *testing.T) {
	pcm, done := parseResponse([]byte(`{"type":"timestamps"}`))
	if pcm != nil || done {
		t.Errorf("got pcm=%v done=%v, want nil/false", pcm, done)
	}
}

func TestParseResponse_BadBase64(t *testing.T) {
	pcm, done := parseResponse([]byte(`{"type":"chunk","data":"!!!","done":true}`))
	if pcm != nil {
		t.Errorf("expected nil pcm for bad base64, got %v", pcm)
	}
	if !done {
		t.Error("done flag must survive a decode failure")
	}
}
