package audio

import "math"

// BytesToInt16 reinterprets little-endian PCM bytes as int16 samples.
// A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

// Int16ToBytes serialises int16 samples as little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Float32ToInt16 converts little-endian 32-bit float PCM bytes (pcm_f32le)
// to int16 samples, clamping to the int16 range. Synthesis backends emit
// f32 samples in [-1, 1]; values outside that range are clipped rather than
// wrapped.
func Float32ToInt16(pcm []byte) []int16 {
	n := len(pcm) / 4
	out := make([]int16, n)
	for i := range n {
		bits := uint32(pcm[i*4]) | uint32(pcm[i*4+1])<<8 | uint32(pcm[i*4+2])<<16 | uint32(pcm[i*4+3])<<24
		f := math.Float32frombits(bits)
		v := int32(f * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM samples from srcRate to dstRate
// using linear interpolation. If srcRate == dstRate the input is returned
// unchanged.
func ResampleMono16(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstSamples := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]int16, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// Encoding identifies the sample encoding of a PCM byte stream.
type Encoding string

const (
	// EncodingS16LE is little-endian signed 16-bit PCM.
	EncodingS16LE Encoding = "pcm_s16le"

	// EncodingF32LE is little-endian 32-bit float PCM.
	EncodingF32LE Encoding = "pcm_f32le"
)

// IsValid reports whether e is a recognised encoding.
func (e Encoding) IsValid() bool {
	return e == EncodingS16LE || e == EncodingF32LE
}

// DecodeSamples converts raw PCM bytes in the given encoding to int16
// samples at the same rate. Unknown encodings are treated as s16le.
func DecodeSamples(pcm []byte, enc Encoding) []int16 {
	if enc == EncodingF32LE {
		return Float32ToInt16(pcm)
	}
	return BytesToInt16(pcm)
}
