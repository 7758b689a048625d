package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	os.Setenv("NOTEGEN_URL", "http://localhost:4000")
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("NOTEGEN_URL")
	})
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}

	if cfg.NoteGenURL != "http://localhost:4000" {
		t.Errorf("Expected NoteGenURL 'http://localhost:4000', got '%s'", cfg.NoteGenURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("NOTEGEN_URL")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("Expected default DefaultLanguage 'en-US', got '%s'", cfg.DefaultLanguage)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.FrameSamples != 4096 {
		t.Errorf("Expected default FrameSamples 4096, got %d", cfg.FrameSamples)
	}
	if cfg.FinalDrainWait != 3 {
		t.Errorf("Expected default FinalDrainWait 3, got %d", cfg.FinalDrainWait)
	}
}

func TestLoad_InvalidFrameSamples(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("FRAME_SAMPLES", "0")
	defer os.Unsetenv("FRAME_SAMPLES")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for zero FRAME_SAMPLES")
	}
}
