package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidInput is returned before any network call for bad source references
	ErrInvalidInput = errors.New("invalid transformation input")
	// ErrUpstream wraps provider transport failures, error statuses and malformed responses
	ErrUpstream = errors.New("transformation provider failure")
)

const (
	enhancePath          = "/v1/enhance"
	removeBackgroundPath = "/v1/remove-background"

	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// Config holds provider client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the external image-transformation provider. It performs
// no writes to storage or the ledger; its only side effect is the
// outbound call.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type transformRequest struct {
	ImageURL string `json:"image_url"`
	Scale    int    `json:"scale,omitempty"`
}

type transformResponse struct {
	Success   bool   `json:"success"`
	ResultURL string `json:"result_url"`
	Error     string `json:"error,omitempty"`
}

// Enhance requests an upscaled version of the source image and returns
// the provider-hosted result URL.
func (c *Client) Enhance(ctx context.Context, imageURL string, scale int) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("%w: missing image URL", ErrInvalidInput)
	}
	if scale < 1 {
		scale = 2
	}
	return c.transform(ctx, enhancePath, transformRequest{ImageURL: imageURL, Scale: scale})
}

// RemoveBackground requests a background-removed version of the source
// image and returns the provider-hosted result URL.
func (c *Client) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("%w: missing image URL", ErrInvalidInput)
	}
	return c.transform(ctx, removeBackgroundPath, transformRequest{ImageURL: imageURL})
}

func (c *Client) transform(ctx context.Context, path string, req transformRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", ErrUpstream, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}

		resultURL, retryable, err := c.post(ctx, path, body)
		if err == nil {
			return resultURL, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", lastErr
}

// post performs one provider call. The second return value reports
// whether the failure is transient (transport error or 5xx status).
func (c *Client) post(ctx context.Context, path string, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("%w: creating request: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Key "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", true, fmt.Errorf("%w: reading response: %v", ErrUpstream, err)
	}

	if res.StatusCode >= 500 {
		return "", true, fmt.Errorf("%w: provider returned status %d", ErrUpstream, res.StatusCode)
	}
	if res.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: provider returned status %d", ErrUpstream, res.StatusCode)
	}

	var result transformResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", false, fmt.Errorf("%w: invalid response: %v", ErrUpstream, err)
	}

	if !result.Success || result.ResultURL == "" {
		return "", false, fmt.Errorf("%w: %s", ErrUpstream, safeDetail(result.Error))
	}

	return result.ResultURL, false, nil
}

func safeDetail(detail string) string {
	if detail == "" {
		return "no result returned"
	}
	return detail
}
