package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/voxloop/pkg/provider/stt"
)

func startSegmenter(t *testing.T, timeout time.Duration) (chan stt.Fragment, chan Utterance, chan error) {
	t.Helper()
	in := make(chan stt.Fragment, 16)
	out := make(chan Utterance, 16)
	done := make(chan error, 1)
	s := NewSegmenter(in, out, timeout, nil, nil)
	go func() { done <- s.Run(context.Background()) }()
	return in, out, done
}

func recvUtterance(t *testing.T, out chan Utterance, within time.Duration) Utterance {
	t.Helper()
	select {
	case utt, ok := <-out:
		if !ok {
			t.Fatal("utterance channel closed unexpectedly")
		}
		return utt
	case <-time.After(within):
		t.Fatal("no utterance within deadline")
	}
	return Utterance{}
}

func TestSegmenterFinalFragmentEmitsImmediately(t *testing.T) {
	// The silence timeout is far longer than the test; only the final flag
	// can trigger the emission.
	in, out, done := startSegmenter(t, time.Minute)

	in <- stt.Fragment{Text: "turn it up", IsFinal: true}
	utt := recvUtterance(t, out, time.Second)
	if utt.Text != "turn it up" {
		t.Errorf("Text = %q, want %q", utt.Text, "turn it up")
	}

	close(in)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestSegmenterTimeoutEmitsPendingPartial(t *testing.T) {
	in, out, done := startSegmenter(t, 30*time.Millisecond)

	in <- stt.Fragment{Text: "hello th"}
	in <- stt.Fragment{Text: "hello there"}

	// The later partial supersedes the earlier one.
	utt := recvUtterance(t, out, time.Second)
	if utt.Text != "hello there" {
		t.Errorf("Text = %q, want %q", utt.Text, "hello there")
	}

	close(in)
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestSegmenterTimeoutRespectsSilenceWindow(t *testing.T) {
	in, out, _ := startSegmenter(t, 80*time.Millisecond)

	start := time.Now()
	in <- stt.Fragment{Text: "slow speech"}
	recvUtterance(t, out, time.Second)
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("utterance after %v, want at least the 80ms silence window", elapsed)
	}
	close(in)
}

func TestSegmenterInputCloseFlushesPending(t *testing.T) {
	in, out, done := startSegmenter(t, time.Minute)

	in <- stt.Fragment{Text: "trailing words"}
	close(in)

	utt := recvUtterance(t, out, time.Second)
	if utt.Text != "trailing words" {
		t.Errorf("Text = %q, want %q", utt.Text, "trailing words")
	}
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, ok := <-out; ok {
		t.Error("output channel not closed after Run")
	}
}

func TestSegmenterIgnoresEmptyFragments(t *testing.T) {
	in, out, done := startSegmenter(t, 30*time.Millisecond)

	in <- stt.Fragment{Text: "   "}
	in <- stt.Fragment{Text: "", IsFinal: true}
	close(in)

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if _, ok := <-out; ok {
		t.Error("got an utterance from contentless fragments")
	}
}

func TestSegmenterFinalAfterPartialEmitsOnce(t *testing.T) {
	in, out, done := startSegmenter(t, time.Minute)

	in <- stt.Fragment{Text: "play some"}
	in <- stt.Fragment{Text: "play some jazz", IsFinal: true}
	close(in)

	utt := recvUtterance(t, out, time.Second)
	if utt.Text != "play some jazz" {
		t.Errorf("Text = %q, want %q", utt.Text, "play some jazz")
	}
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if extra, ok := <-out; ok {
		t.Errorf("unexpected second utterance %q", extra.Text)
	}
}

func TestSegmenterCancelStopsRun(t *testing.T) {
	in := make(chan stt.Fragment)
	out := make(chan Utterance)
	s := NewSegmenter(in, out, time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
