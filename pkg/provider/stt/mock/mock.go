// Package mock provides in-memory mock implementations of the [stt.Provider]
// and [stt.SessionHandle] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	sess := mock.NewSession()
//	provider := &mock.Provider{StartStreamResult: sess}
//	handle, _ := provider.StartStream(ctx, cfg)
//	sess.EmitFragment(stt.Fragment{Text: "hello", IsFinal: true})
//	sess.Close()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxloop/pkg/provider/stt"
)

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is a mock implementation of [stt.SessionHandle].
// Feed transcript fragments with [Session.EmitFragment].
type Session struct {
	mu sync.Mutex

	// SendAudioError is returned by SendAudio.
	SendAudioError error

	// CloseError is returned by Close.
	CloseError error

	// SendAudioCalls records a copy of every audio chunk passed to SendAudio.
	SendAudioCalls [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int

	fragments chan stt.Fragment
	closed    bool
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates a mock session with a buffered fragment channel.
func NewSession() *Session {
	return &Session{fragments: make(chan stt.Fragment, 64)}
}

// SendAudio implements [stt.SessionHandle]. Records a copy of chunk and
// returns SendAudioError.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, cp)
	return s.SendAudioError
}

// Fragments implements [stt.SessionHandle].
func (s *Session) Fragments() <-chan stt.Fragment { return s.fragments }

// Close implements [stt.SessionHandle]. The fragment channel is closed on the
// first call; subsequent calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.fragments)
	}
	return s.CloseError
}

// EmitFragment delivers a fragment to the session's Fragments channel.
// Panics if the session is already closed, which in a test means the
// sequencing under test is wrong.
func (s *Session) EmitFragment(f stt.Fragment) {
	s.fragments <- f
}

// ─── Provider ─────────────────────────────────────────────────────────────────

// StartStreamCall records the arguments of a single [Provider.StartStream]
// invocation.
type StartStreamCall struct {
	// Config is the StreamConfig passed to StartStream.
	Config stt.StreamConfig
}

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// StartStreamResult is the session returned by StartStream.
	StartStreamResult stt.SessionHandle

	// StartStreamError is the error returned by StartStream.
	StartStreamError error

	// StartStreamCalls records all StartStream invocations.
	StartStreamCalls []StartStreamCall
}

var _ stt.Provider = (*Provider)(nil)

// StartStream implements [stt.Provider]. Records the call and returns
// StartStreamResult / StartStreamError.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Config: cfg})
	if p.StartStreamError != nil {
		return nil, p.StartStreamError
	}
	return p.StartStreamResult, nil
}
