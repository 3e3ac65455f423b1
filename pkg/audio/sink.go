package audio

import (
	"fmt"
	"log/slog"
	"os"
)

// FileSink writes playback frames to a WAV file so the pipeline can run
// headless. The RIFF header is written with a zero data size on Start and
// patched with the real size on Close, matching how audio tools expect a
// file to be finalised.
type FileSink struct {
	path    string
	log     *slog.Logger
	file    *os.File
	format  Format
	written uint32
	started bool
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates a sink writing to the WAV file at path. The file is
// created (truncated) on [FileSink.Start].
func NewFileSink(path string, log *slog.Logger) *FileSink {
	if log == nil {
		log = slog.Default()
	}
	return &FileSink{path: path, log: log}
}

// Start creates the output file and writes a provisional header.
func (s *FileSink) Start(format Format) error {
	if s.started {
		return fmt.Errorf("file sink: already started")
	}
	if format.SampleRate <= 0 {
		return fmt.Errorf("file sink: invalid sample rate %d", format.SampleRate)
	}
	if format.Channels != 1 {
		return fmt.Errorf("file sink: unsupported channel count %d (mono only)", format.Channels)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("file sink: create %s: %w", s.path, err)
	}
	if _, err := f.Write(encodeWAVHeader(format.SampleRate, 0)); err != nil {
		f.Close()
		return fmt.Errorf("file sink: write header: %w", err)
	}

	s.file = f
	s.format = format
	s.started = true
	s.log.Info("file sink started", "path", s.path, "sample_rate", format.SampleRate)
	return nil
}

// WriteFrame appends one frame of little-endian int16 PCM to the file.
func (s *FileSink) WriteFrame(pcm []byte) error {
	if !s.started {
		return fmt.Errorf("file sink: not started")
	}
	n, err := s.file.Write(pcm)
	s.written += uint32(n)
	if err != nil {
		return fmt.Errorf("file sink: write frame: %w", err)
	}
	return nil
}

// Close patches the header with the final data size and closes the file.
// Safe to call more than once; subsequent calls are no-ops.
func (s *FileSink) Close() error {
	if !s.started || s.file == nil {
		return nil
	}
	defer func() { s.file = nil }()

	if _, err := s.file.WriteAt(encodeWAVHeader(s.format.SampleRate, s.written), 0); err != nil {
		s.file.Close()
		return fmt.Errorf("file sink: finalise header: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("file sink: close: %w", err)
	}
	s.log.Info("file sink closed", "path", s.path, "bytes", s.written)
	return nil
}
