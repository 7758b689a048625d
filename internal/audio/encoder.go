package audio

import "encoding/binary"

// Quantize converts a floating-point sample in [-1.0, 1.0] to a 16-bit
// signed PCM sample. Negative samples scale by 32768 and non-negative
// samples by 32767, matching standard PCM16 convention. Out-of-range
// input is clamped.
func Quantize(sample float32) int16 {
	if sample < -1.0 {
		sample = -1.0
	} else if sample > 1.0 {
		sample = 1.0
	}
	if sample < 0 {
		return int16(sample * 32768)
	}
	return int16(sample * 32767)
}

// Dequantize is the inverse of Quantize, within one LSB of quantization loss.
func Dequantize(sample int16) float32 {
	if sample < 0 {
		return float32(sample) / 32768
	}
	return float32(sample) / 32767
}

// PCM16Bytes encodes floating-point samples as little-endian PCM16 bytes.
func PCM16Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(Quantize(s)))
	}
	return out
}

// Int16Bytes encodes PCM16 samples as little-endian bytes.
func Int16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Framer accumulates PCM16-encoded audio and emits fixed-size frames.
// Partial tail samples stay buffered until the next push; Reset discards
// them so no audio leaks across session boundaries.
type Framer struct {
	frameBytes int
	buf        []byte
}

// NewFramer creates a framer emitting frames of frameSamples 16-bit samples.
func NewFramer(frameSamples int) *Framer {
	if frameSamples <= 0 {
		frameSamples = 4096
	}
	return &Framer{frameBytes: frameSamples * 2}
}

// Push quantizes the samples and returns all complete frames now available.
func (f *Framer) Push(samples []float32) [][]byte {
	f.buf = append(f.buf, PCM16Bytes(samples)...)

	var frames [][]byte
	for len(f.buf) >= f.frameBytes {
		frame := make([]byte, f.frameBytes)
		copy(frame, f.buf[:f.frameBytes])
		frames = append(frames, frame)
		f.buf = f.buf[f.frameBytes:]
	}
	return frames
}

// Flush returns any buffered partial frame, zero-padded to the frame size.
func (f *Framer) Flush() []byte {
	if len(f.buf) == 0 {
		return nil
	}
	frame := make([]byte, f.frameBytes)
	copy(frame, f.buf)
	f.buf = f.buf[:0]
	return frame
}

// Reset discards buffered audio.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Pending returns the number of buffered bytes not yet emitted.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Resample performs linear interpolation resampling of floating-point
// samples. Adequate for speech; not intended for music-grade conversion.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1.0-fraction) + samples[idx1]*fraction
	}

	return output
}
