// Package publish is the HTTP client for the publish collaborator. Each
// call pushes one media payload with its caption to a target platform.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/gopost/repost/internal/logger"
)

// Result is the per-platform outcome of one publish attempt.
type Result struct {
	Platform   string `json:"platform"`
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Config struct {
	URL          string
	Token        string
	Timeout      time.Duration
	RateLimitRPS int
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewClient creates a rate-limited publish client.
func NewClient(cfg Config, log logger.Logger) *Client {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		logger:  log,
	}
}

type publishResponse struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Publish sends the payload and caption to a platform. A failed publish
// is reported through Result, not the error return; the error return is
// reserved for transport-level failures.
func (c *Client) Publish(ctx context.Context, platform string, payload []byte, caption string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Platform: platform}, fmt.Errorf("rate limit wait: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("caption", caption); err != nil {
		return Result{Platform: platform}, fmt.Errorf("write caption field: %w", err)
	}
	part, err := writer.CreateFormFile("media", "media.bin")
	if err != nil {
		return Result{Platform: platform}, fmt.Errorf("create media part: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return Result{Platform: platform}, fmt.Errorf("write media part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{Platform: platform}, fmt.Errorf("close multipart writer: %w", err)
	}

	reqURL := c.baseURL + "/api/v1/platforms/" + platform + "/publish"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return Result{Platform: platform}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Platform: platform}, fmt.Errorf("publish to %s: %w", platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Platform: platform}, fmt.Errorf("read publish response: %w", err)
	}

	var decoded publishResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return Result{Platform: platform}, fmt.Errorf("decode publish response: %w", err)
	}

	result := Result{
		Platform:   platform,
		Success:    decoded.Success && resp.StatusCode < http.StatusBadRequest,
		ExternalID: decoded.ExternalID,
		Error:      decoded.Error,
	}
	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("publish returned status %d", resp.StatusCode)
	}

	c.logger.Info("Publish attempt",
		logger.String("platform", platform),
		logger.Bool("success", result.Success),
		logger.Duration("duration", time.Since(start)),
	)

	return result, nil
}
