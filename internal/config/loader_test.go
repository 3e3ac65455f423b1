package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8844"
  log_level: debug
providers:
  stt:
    name: cartesia
    api_key: sk-stt
  llm:
    name: openai
    api_key: sk-llm
    model: gpt-4o-mini
  tts:
    name: cartesia
    api_key: sk-tts
    model: sonic-2
audio:
  input_file: in.wav
  output_file: out.wav
pipeline:
  silence_timeout: 750ms
  system_prompt: "Be brief."
  temperature: 0.7
voice:
  id: a0e99841-438c-4a64-b679-ae501e7d6091
  speed_factor: 1.1
transcript:
  postgres_dsn: postgres://localhost/voxloop
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader returned %v", err)
	}

	if cfg.Server.ListenAddr != ":8844" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm model = %q", cfg.Providers.LLM.Model)
	}
	if cfg.Pipeline.SilenceTimeout.Std() != 750*time.Millisecond {
		t.Errorf("silence_timeout = %v", cfg.Pipeline.SilenceTimeout.Std())
	}
	if cfg.Voice.SpeedFactor != 1.1 {
		t.Errorf("speed_factor = %v", cfg.Voice.SpeedFactor)
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  stt: {name: cartesia}
  llm: {name: openai}
  tts: {name: cartesia}
audio:
  input_file: in.wav
  output_file: out.wav
`))
	if err != nil {
		t.Fatalf("LoadFromReader returned %v", err)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level default = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.CaptureRate != 16000 || cfg.Audio.PlaybackRate != 24000 {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
	if cfg.Audio.FrameDuration.Std() != 100*time.Millisecond {
		t.Errorf("frame_duration default = %v, want 100ms", cfg.Audio.FrameDuration.Std())
	}
	if cfg.Pipeline.Language != "en" {
		t.Errorf("language default = %q", cfg.Pipeline.Language)
	}
	if cfg.Pipeline.MinBufferSamples != 4800 {
		t.Errorf("min_buffer_samples default = %d", cfg.Pipeline.MinBufferSamples)
	}
	if cfg.Pipeline.MaxRetries != 2 {
		t.Errorf("max_retries default = %d", cfg.Pipeline.MaxRetries)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
providers:
  stt: {name: cartesia}
totally_unknown_key: true
`))
	if err == nil {
		t.Fatal("unknown top-level key was accepted")
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
pipeline:
  silence_timeout: soon
`))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v, want invalid duration", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Pipeline.Temperature = 5
	cfg.Voice.SpeedFactor = 9

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{
		"server.log_level",
		"providers.stt.name is required",
		"providers.llm.name is required",
		"providers.tts.name is required",
		"audio.input_file is required",
		"pipeline.temperature",
		"voice.speed_factor",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/voxloop.yaml")
	if err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestValidateSpeedFactorZeroIsDefault(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
providers:
  stt: {name: cartesia}
  llm: {name: openai}
  tts: {name: cartesia}
audio:
  input_file: in.wav
  output_file: out.wav
voice:
  id: some-voice
`))
	if err != nil {
		t.Fatalf("LoadFromReader returned %v", err)
	}
	if cfg.Voice.SpeedFactor != 0 {
		t.Errorf("speed_factor = %v, want 0 (provider default)", cfg.Voice.SpeedFactor)
	}
}
