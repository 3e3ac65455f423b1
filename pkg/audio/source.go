package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// FileSource replays a 16-bit mono WAV file as a stream of fixed-duration
// capture frames. It stands in for a microphone: frames carry monotonic
// sequence numbers, and in real-time mode they are paced at the frame cadence
// so downstream timing behaves as it would with a live device.
//
// When the file is exhausted the stream channel is closed, which downstream
// stages treat as device stop.
type FileSource struct {
	path     string
	frameDur time.Duration
	realtime bool
	log      *slog.Logger
}

var _ Source = (*FileSource)(nil)

// FileSourceOption customises a [FileSource].
type FileSourceOption func(*FileSource)

// WithFrameDuration sets the duration of each emitted frame. Default 100ms.
func WithFrameDuration(d time.Duration) FileSourceOption {
	return func(s *FileSource) {
		if d > 0 {
			s.frameDur = d
		}
	}
}

// WithRealtime controls pacing. When true (default), frames are emitted at
// the frame cadence; when false, the file is streamed as fast as the
// downstream consumes it.
func WithRealtime(realtime bool) FileSourceOption {
	return func(s *FileSource) { s.realtime = realtime }
}

// WithSourceLogger sets the logger. Defaults to slog.Default.
func WithSourceLogger(log *slog.Logger) FileSourceOption {
	return func(s *FileSource) {
		if log != nil {
			s.log = log
		}
	}
}

// NewFileSource creates a source replaying the WAV file at path.
// The file is read lazily on [FileSource.Stream].
func NewFileSource(path string, opts ...FileSourceOption) *FileSource {
	s := &FileSource{
		path:     path,
		frameDur: 100 * time.Millisecond,
		realtime: true,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream reads the WAV file and returns a channel of frames. The channel is
// closed when the file is exhausted or ctx is cancelled.
func (s *FileSource) Stream(ctx context.Context) (<-chan Frame, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("file source: read %s: %w", s.path, err)
	}
	rate, size, err := decodeWAVHeader(data)
	if err != nil {
		return nil, fmt.Errorf("file source: %s: %w", s.path, err)
	}
	pcm := data[wavHeaderSize : wavHeaderSize+size]

	frameBytes := int(int64(rate) * int64(s.frameDur) / int64(time.Second) * 2)
	if frameBytes <= 0 {
		return nil, fmt.Errorf("file source: frame duration %v too short for rate %d", s.frameDur, rate)
	}

	out := make(chan Frame, 10)
	go s.emit(ctx, out, pcm, rate, frameBytes)

	s.log.Info("file source started",
		"path", s.path,
		"sample_rate", rate,
		"frame_bytes", frameBytes,
		"realtime", s.realtime)
	return out, nil
}

func (s *FileSource) emit(ctx context.Context, out chan<- Frame, pcm []byte, rate, frameBytes int) {
	defer close(out)

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(s.frameDur)
		defer ticker.Stop()
	}

	var seq uint64
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}

		frame := Frame{
			Data:       pcm[off:end],
			SampleRate: rate,
			Duration:   s.frameDur,
			Seq:        seq,
		}
		seq++

		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
	s.log.Info("file source exhausted", "path", s.path, "frames", seq)
}
