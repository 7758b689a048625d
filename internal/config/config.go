package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the dictation gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service when behind a tunnel or load balancer.
	// Used only for logging the websocket endpoint clients should connect to.
	GatewayURL string `envconfig:"GATEWAY_URL" default:""`

	// Deepgram STT API configuration
	DeepgramAPIKey  string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel   string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"en-US"` // Used when init carries no language tag

	// Note drafting service (OpenAI-compatible chat completions endpoint)
	NoteGenURL     string `envconfig:"NOTEGEN_URL" required:"true"`
	NoteGenAPIKey  string `envconfig:"NOTEGEN_API_KEY" default:""`
	NoteGenModel   string `envconfig:"NOTEGEN_MODEL" default:"gpt-4"`
	NoteGenTimeout int    `envconfig:"NOTEGEN_TIMEOUT" default:"30"` // seconds

	// Audio configuration
	SampleRate   int `envconfig:"SAMPLE_RATE" default:"16000"`  // Capture/wire sample rate in Hz
	FrameSamples int `envconfig:"FRAME_SAMPLES" default:"4096"` // Samples per transmitted audio frame

	// Session lifecycle configuration
	FinalDrainWait int `envconfig:"FINAL_DRAIN_WAIT" default:"3"` // Seconds the server drains the recognizer after stop

	// Diary context configuration
	DiaryDBPath       string `envconfig:"DIARY_DB_PATH" default:""`
	DiaryContextLimit int    `envconfig:"DIARY_CONTEXT_LIMIT" default:"10"` // Entries included in the context snapshot

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists, then from the environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.NoteGenURL == "" {
		return nil, fmt.Errorf("NOTEGEN_URL is required")
	}
	if cfg.FrameSamples <= 0 {
		return nil, fmt.Errorf("FRAME_SAMPLES must be positive, got %d", cfg.FrameSamples)
	}

	return &cfg, nil
}

// FinalDrainWaitDuration returns the post-stop recognizer drain as a duration.
func (c *Config) FinalDrainWaitDuration() time.Duration {
	return time.Duration(c.FinalDrainWait) * time.Second
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
