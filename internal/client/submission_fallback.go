package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
)

const maxErrorBody = 4 << 10

// SubmissionFallback posts submissions to the secondary submit-assignment endpoint.
type SubmissionFallback struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// NewSubmissionFallback builds a client for endpoint. A nil httpClient gets a
// client with the given timeout.
func NewSubmissionFallback(endpoint string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *SubmissionFallback {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionFallback{endpoint: strings.TrimRight(endpoint, "/"), http: httpClient, logger: logger}
}

// Submit sends the write on behalf of the caller identified by bearerToken.
func (c *SubmissionFallback) Submit(ctx context.Context, bearerToken string, req dto.FallbackSubmitRequest) (*dto.FallbackSubmitResponse, error) {
	if c.endpoint == "" {
		return nil, errors.New("fallback endpoint is not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode fallback request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build fallback request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("fallback submission sent", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeFailure(resp)
	}

	var out dto.FallbackSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fallback response: %w", err)
	}
	return &out, nil
}

func decodeFailure(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload dto.FallbackErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("fallback returned %d: %s", resp.StatusCode, payload.Error)
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("fallback returned %d: %s", resp.StatusCode, msg)
}
