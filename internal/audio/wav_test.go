package audio

import (
	"math"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if len(data) != 44+len(samples)*2 {
		t.Errorf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		t.Error("missing RIFF magic")
	}
	if string(data[8:12]) != "WAVE" {
		t.Error("missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		t.Error("missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		t.Error("missing data chunk")
	}
}

func TestEncodeWAV_Empty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestWAV_FloatRoundTripWithinOneLSB(t *testing.T) {
	// A short sine sweep covering both polarities.
	original := make([]float32, 512)
	for i := range original {
		original[i] = float32(math.Sin(float64(i) * 0.1))
	}

	data, err := EncodeWAVFromFloat(original, 16000)
	if err != nil {
		t.Fatalf("EncodeWAVFromFloat failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(original) {
		t.Fatalf("expected %d samples, got %d", len(original), len(decoded))
	}

	for i, s := range decoded {
		diff := float64(Dequantize(s)) - float64(original[i])
		if math.Abs(diff) > 1.0/32767.0 {
			t.Fatalf("sample %d: quantization loss %f exceeds 1 LSB", i, diff)
		}
	}
}

func TestDecodeWAV_RejectsMalformed(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("too short")); err == nil {
		t.Error("expected error for truncated buffer")
	}

	valid, _ := EncodeWAV([]int16{1, 2, 3}, 16000)
	corrupted := append([]byte{}, valid...)
	copy(corrupted[0:4], "JUNK")
	if _, _, err := DecodeWAV(corrupted); err == nil {
		t.Error("expected error for missing RIFF header")
	}
}

func TestWAVDuration(t *testing.T) {
	samples := make([]int16, 16000) // exactly one second
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	dur, err := WAVDuration(data)
	if err != nil {
		t.Fatalf("WAVDuration failed: %v", err)
	}
	if math.Abs(dur-1.0) > 0.001 {
		t.Errorf("expected duration 1.0s, got %f", dur)
	}
}
