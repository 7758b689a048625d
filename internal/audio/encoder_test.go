package audio

import (
	"encoding/binary"
	"testing"
)

func TestQuantize_AsymmetricScaling(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0.0, 0},
		{1.0, 32767},
		{-1.0, -32768},
		{0.5, 16383},
		{-0.5, -16384},
		{2.0, 32767},   // clamped
		{-2.0, -32768}, // clamped
	}

	for _, tc := range cases {
		got := Quantize(tc.in)
		if got != tc.want {
			t.Errorf("Quantize(%f) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestQuantize_DequantizeWithinOneLSB(t *testing.T) {
	inputs := []float32{-1.0, -0.73, -0.001, 0.0, 0.001, 0.25, 0.9999, 1.0}

	for _, in := range inputs {
		out := Dequantize(Quantize(in))
		diff := out - in
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/32767.0 {
			t.Errorf("round-trip of %f lost %f, more than 1 LSB", in, diff)
		}
	}
}

func TestPCM16Bytes_LittleEndian(t *testing.T) {
	data := PCM16Bytes([]float32{1.0, -1.0})
	if len(data) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(data))
	}

	first := int16(binary.LittleEndian.Uint16(data[0:2]))
	second := int16(binary.LittleEndian.Uint16(data[2:4]))
	if first != 32767 {
		t.Errorf("expected first sample 32767, got %d", first)
	}
	if second != -32768 {
		t.Errorf("expected second sample -32768, got %d", second)
	}
}

func TestFramer_FixedSizeFrames(t *testing.T) {
	f := NewFramer(4) // 8-byte frames

	frames := f.Push(make([]float32, 3))
	if len(frames) != 0 {
		t.Fatalf("expected no frame from 3 samples, got %d", len(frames))
	}
	if f.Pending() != 6 {
		t.Errorf("expected 6 pending bytes, got %d", f.Pending())
	}

	frames = f.Push(make([]float32, 6))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames from 9 accumulated samples, got %d", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 8 {
			t.Errorf("frame %d has %d bytes, want 8", i, len(frame))
		}
	}
	if f.Pending() != 2 {
		t.Errorf("expected 2 pending bytes after emission, got %d", f.Pending())
	}
}

func TestFramer_ResetDiscardsPartialFrame(t *testing.T) {
	f := NewFramer(4)
	f.Push(make([]float32, 3))
	f.Reset()

	if f.Pending() != 0 {
		t.Errorf("expected no pending bytes after reset, got %d", f.Pending())
	}

	// A fresh session must not inherit the previous tail.
	frames := f.Push(make([]float32, 4))
	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 frame, got %d", len(frames))
	}
}

func TestFramer_FlushPadsTail(t *testing.T) {
	f := NewFramer(4)
	f.Push([]float32{0.5, 0.5, 0.5})

	frame := f.Flush()
	if len(frame) != 8 {
		t.Fatalf("expected padded 8-byte frame, got %d bytes", len(frame))
	}
	if f.Pending() != 0 {
		t.Errorf("expected empty framer after flush, got %d pending", f.Pending())
	}
	if f.Flush() != nil {
		t.Error("expected nil flush when nothing is buffered")
	}
}

func TestResample_Downsampling(t *testing.T) {
	samples := make([]float32, 48000)
	for i := range samples {
		samples[i] = float32(i%100) / 100.0
	}

	out := Resample(samples, 48000, 16000)
	if len(out) != 16000 {
		t.Errorf("expected 16000 output samples, got %d", len(out))
	}
}

func TestResample_SameRatePassthrough(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	out := Resample(samples, 16000, 16000)
	if len(out) != 3 {
		t.Fatalf("expected passthrough, got %d samples", len(out))
	}
}
