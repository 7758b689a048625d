// Package notegen drafts four-section clinical notes from dictation
// transcripts by calling an OpenAI-compatible chat completions service.
package notegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribehealth/dictation-gateway/internal/config"
	"github.com/scribehealth/dictation-gateway/internal/note"
	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/resilience"
)

// Drafter produces a structured note from a transcript and the read-only
// context snapshot supplied at session start.
type Drafter interface {
	Draft(ctx context.Context, transcript string, contextEntries []string) (note.Sections, error)
}

const systemPrompt = `You are a medical documentation assistant. Transform clinical dictation into a structured SOAP note format.

SOAP Format:
- Subjective (S): Patient's description of symptoms, history, concerns
- Objective (O): Observable findings, vital signs, examination results, test results
- Assessment (A): Clinical impression, diagnosis, differential diagnosis
- Plan (P): Treatment plan, medications, follow-up, patient education

Be precise, professional, and maintain medical accuracy. If information is missing for a section, leave that section empty rather than inventing content.`

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL        string
	apiKey         string
	model          string
	httpClient     *http.Client
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewClient creates a note drafting client from the gateway configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.NoteGenURL, "/"),
		apiKey:  cfg.NoteGenAPIKey,
		model:   cfg.NoteGenModel,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.NoteGenTimeout) * time.Second,
		},
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		circuitBreaker: resilience.NewCircuitBreaker(
			"notegen",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.WithComponent("notegen"),
	}
}

// chatMessage is a chat completion message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatResponse is the OpenAI chat completion response.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Draft converts a transcript into a four-section note. Missing sections
// come back empty so the merge engine keeps their placeholders.
func (c *Client) Draft(ctx context.Context, transcript string, contextEntries []string) (note.Sections, error) {
	if strings.TrimSpace(transcript) == "" {
		return note.Sections{}, fmt.Errorf("empty transcript")
	}

	userPrompt := "Convert this clinical dictation into SOAP format:\n\n" + transcript
	if len(contextEntries) > 0 {
		userPrompt += "\n\nRelevant prior records:\n- " + strings.Join(contextEntries, "\n- ")
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	}

	var content string
	err := c.circuitBreaker.Call(func() error {
		return resilience.Retry(func() error {
			var callErr error
			content, callErr = c.complete(ctx, req)
			return callErr
		}, c.retryConfig, resilience.IsRetryableNetworkError)
	})

	observability.UpdateCircuitBreakerState("notegen", int(c.circuitBreaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures("notegen")
		return note.Sections{}, err
	}

	return ParseSections(content), nil
}

func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("chat completion error (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("chat completion returned status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
