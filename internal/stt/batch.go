package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scribehealth/dictation-gateway/internal/audio"
)

// batchChunkBytes is the write size used when replaying a clip into a
// streaming recognizer session.
const batchChunkBytes = 8192

// Transcribe runs a complete in-memory clip through a streaming recognizer
// session and joins the final results into one transcript. This is the
// recognition path behind the non-streaming submission endpoint.
func Transcribe(ctx context.Context, factory Factory, samples []int16, language string, drainWait time.Duration) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("empty audio clip")
	}

	rec := factory(language)
	if err := rec.Start(); err != nil {
		return "", fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer rec.Close()

	data := audio.Int16Bytes(samples)
	for off := 0; off < len(data); off += batchChunkBytes {
		end := off + batchChunkBytes
		if end > len(data) {
			end = len(data)
		}
		if err := rec.SendAudio(data[off:end]); err != nil {
			return "", fmt.Errorf("failed to send audio: %w", err)
		}
	}

	if err := rec.Stop(); err != nil {
		return "", fmt.Errorf("failed to stop recognizer: %w", err)
	}

	var parts []string
	deadline := time.NewTimer(drainWait)
	defer deadline.Stop()

	for {
		select {
		case res, ok := <-rec.Results():
			if !ok {
				return joinFinals(parts)
			}
			if res.IsFinal && res.Text != "" {
				parts = append(parts, res.Text)
			}
		case <-deadline.C:
			return joinFinals(parts)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func joinFinals(parts []string) (string, error) {
	transcript := strings.TrimSpace(strings.Join(parts, " "))
	if transcript == "" {
		return "", fmt.Errorf("no speech recognized in clip")
	}
	return transcript, nil
}
