package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxloop/pkg/audio"
	"github.com/MrWong99/voxloop/pkg/provider/tts"
	"github.com/MrWong99/voxloop/pkg/provider/tts/mock"
)

func runSynthDriver(t *testing.T, provider tts.Provider, units []SentenceUnit) []SynthesizedChunk {
	t.Helper()
	in := make(chan SentenceUnit, len(units))
	out := make(chan SynthesizedChunk, 256)
	for _, u := range units {
		in <- u
	}
	close(in)

	d := NewSynthDriver(in, out, provider, tts.VoiceProfile{ID: "test-voice"}, nil, nil)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	var got []SynthesizedChunk
	for chunk := range out {
		got = append(got, chunk)
	}
	return got
}

func TestSynthDriverOrdersChunksByTurnAndSeq(t *testing.T) {
	provider := &mock.Provider{SynthesizeChunks: [][]byte{{1, 0}, {2, 0}}}

	got := runSynthDriver(t, provider, []SentenceUnit{
		{Text: "First.", TurnID: 1},
		{Text: "Second.", TurnID: 1},
		{Text: "Third.", TurnID: 2},
	})

	if len(got) != 6 {
		t.Fatalf("got %d chunks, want 6", len(got))
	}

	// Seq runs through a turn and restarts on a new turn.
	wantTurns := []uint64{1, 1, 1, 1, 2, 2}
	wantSeqs := []uint64{1, 2, 3, 4, 1, 2}
	for i, chunk := range got {
		if chunk.TurnID != wantTurns[i] || chunk.Seq != wantSeqs[i] {
			t.Errorf("chunk %d = turn %d seq %d, want turn %d seq %d",
				i, chunk.TurnID, chunk.Seq, wantTurns[i], wantSeqs[i])
		}
	}

	wantTexts := []string{"First.", "Second.", "Third."}
	if len(provider.SynthesizeCalls) != len(wantTexts) {
		t.Fatalf("Synthesize called %d times, want %d", len(provider.SynthesizeCalls), len(wantTexts))
	}
	for i, call := range provider.SynthesizeCalls {
		if call.Text != wantTexts[i] {
			t.Errorf("call %d synthesized %q, want %q", i, call.Text, wantTexts[i])
		}
		if call.Voice.ID != "test-voice" {
			t.Errorf("call %d voice = %q, want test-voice", i, call.Voice.ID)
		}
	}
}

func TestSynthDriverPropagatesOutputFormat(t *testing.T) {
	provider := &mock.Provider{
		SynthesizeChunks: [][]byte{{0, 0, 0, 0}},
		Format:           tts.OutputFormat{SampleRate: 44100, Encoding: string(audio.EncodingF32LE)},
	}

	got := runSynthDriver(t, provider, []SentenceUnit{{Text: "Hello.", TurnID: 1}})

	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0].SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", got[0].SampleRate)
	}
	if got[0].Encoding != audio.EncodingF32LE {
		t.Errorf("Encoding = %q, want %q", got[0].Encoding, audio.EncodingF32LE)
	}
}

func TestSynthDriverSkipsFailedSentence(t *testing.T) {
	provider := &mock.Provider{
		SynthesizeChunks: [][]byte{{1, 0}},
		SynthesizeErr:    errors.New("voice not found"),
		FailTexts:        []string{"Bad one."},
	}

	got := runSynthDriver(t, provider, []SentenceUnit{
		{Text: "Good one.", TurnID: 1},
		{Text: "Bad one.", TurnID: 1},
		{Text: "Another good one.", TurnID: 1},
	})

	// The failed sentence is skipped; its neighbors still play and the
	// sequence stays gapless.
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", got[0].Seq, got[1].Seq)
	}
	if len(provider.SynthesizeCalls) != 3 {
		t.Errorf("Synthesize called %d times, want 3 (failure still attempted)", len(provider.SynthesizeCalls))
	}
}

func TestSynthDriverEmptyInputClosesOutput(t *testing.T) {
	provider := &mock.Provider{}
	got := runSynthDriver(t, provider, nil)
	if len(got) != 0 {
		t.Errorf("got %d chunks from empty input", len(got))
	}
}
