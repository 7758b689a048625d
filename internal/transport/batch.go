package transport

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

	"github.com/scribehealth/dictation-gateway/internal/observability"
	"github.com/scribehealth/dictation-gateway/internal/protocol"
	"github.com/scribehealth/dictation-gateway/internal/resilience"
)

// BatchSubmitter submits a one-shot note request outside the streaming path.
type BatchSubmitter interface {
	Submit(ctx context.Context, req protocol.BatchRequest) (*protocol.BatchResponse, error)
}

// BatchClient submits batch requests to the gateway's HTTP endpoint.
type BatchClient struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig *resilience.RetryConfig
	logger      zerolog.Logger
}

// NewBatchClient creates a batch submission client for the gateway at
// baseURL, e.g. http://host:8080.
func NewBatchClient(baseURL string, timeout time.Duration) *BatchClient {
	return &BatchClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retryConfig: &resilience.RetryConfig{
			MaxAttempts:       2,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: observability.WithComponent("transport"),
	}
}

// Submit posts the request to /v1/notes and decodes the structured note.
func (c *BatchClient) Submit(ctx context.Context, req protocol.BatchRequest) (*protocol.BatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	var result *protocol.BatchResponse
	err = resilience.Retry(func() error {
		var callErr error
		result, callErr = c.post(ctx, body)
		return callErr
	}, c.retryConfig, resilience.IsRetryableNetworkError)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *BatchClient) post(ctx context.Context, body []byte) (*protocol.BatchResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/notes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp protocol.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("batch request rejected (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("batch request returned status %d", resp.StatusCode)
	}

	var result protocol.BatchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse batch response: %w", err)
	}
	return &result, nil
}
