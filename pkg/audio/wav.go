package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// wavHeaderSize is the byte length of wavHeader on disk.
const wavHeaderSize = 44

// encodeWAVHeader builds a header for the given mono 16-bit PCM data size.
func encodeWAVHeader(sampleRate int, dataSize uint32) []byte {
	h := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize))
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// decodeWAVHeader parses and validates a WAV header, returning the sample
// rate and the PCM payload length. Only 16-bit mono PCM is supported; the
// capture path has no use for anything else.
func decodeWAVHeader(data []byte) (sampleRate int, dataSize int, err error) {
	if len(data) < wavHeaderSize {
		return 0, 0, fmt.Errorf("wav: header too short: %d bytes", len(data))
	}

	var h wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return 0, 0, fmt.Errorf("wav: read header: %w", err)
	}

	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return 0, 0, fmt.Errorf("wav: not a RIFF/WAVE file")
	}
	if string(h.Subchunk1ID[:]) != "fmt " || string(h.Subchunk2ID[:]) != "data" {
		return 0, 0, fmt.Errorf("wav: missing fmt or data chunk")
	}
	if h.AudioFormat != 1 {
		return 0, 0, fmt.Errorf("wav: unsupported audio format %d (PCM only)", h.AudioFormat)
	}
	if h.BitsPerSample != 16 {
		return 0, 0, fmt.Errorf("wav: unsupported bit depth %d (16-bit only)", h.BitsPerSample)
	}
	if h.NumChannels != 1 {
		return 0, 0, fmt.Errorf("wav: unsupported channel count %d (mono only)", h.NumChannels)
	}

	size := int(h.Subchunk2Size)
	if size > len(data)-wavHeaderSize {
		size = len(data) - wavHeaderSize
	}
	return int(h.SampleRate), size, nil
}

// EncodeWAV wraps mono 16-bit PCM samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: sample rate must be positive, got %d", sampleRate)
	}
	pcm := Int16ToBytes(samples)
	out := make([]byte, 0, wavHeaderSize+len(pcm))
	out = append(out, encodeWAVHeader(sampleRate, uint32(len(pcm)))...)
	out = append(out, pcm...)
	return out, nil
}

// DecodeWAV extracts mono 16-bit PCM samples and the sample rate from a WAV
// container.
func DecodeWAV(data []byte) ([]int16, int, error) {
	rate, size, err := decodeWAVHeader(data)
	if err != nil {
		return nil, 0, err
	}
	return BytesToInt16(data[wavHeaderSize : wavHeaderSize+size]), rate, nil
}
