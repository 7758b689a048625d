package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig tunes reconnection backoff.
type ReconnectConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration
}

// DefaultReconnectConfig is a sensible default for long-lived streams.
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// ReconnectFunc is one reconnection attempt.
type ReconnectFunc func() error

// Reconnect retries fn with exponential backoff until it succeeds, the
// attempts run out, or ctx is cancelled.
func Reconnect(ctx context.Context, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	backoff := config.Backoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			log.Debug().Int("attempts", attempt+1).Msg("Reconnected")
			return nil
		}

		if attempt == config.MaxAttempts-1 {
			break
		}
		log.Debug().Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", config.MaxAttempts).
			Dur("backoff", backoff).
			Msg("Reconnection attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * config.Multiplier)
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", config.MaxAttempts)
}
