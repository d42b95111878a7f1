// Package scraper is the HTTP client for the scraping collaborator,
// which supplies candidate pools, account history and media payloads.
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/models"
)

// maxPayloadBytes bounds a single media download (64 MiB).
const maxPayloadBytes = 64 << 20

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logger.Logger
}

// NewClient creates a scraper client.
func NewClient(cfg Config, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  log,
	}
}

type candidatesResponse struct {
	Items []models.Candidate `json:"items"`
	Count int                `json:"count"`
}

// History returns the account's most recent publications as candidates.
func (c *Client) History(ctx context.Context, account string, limit int) ([]models.Candidate, error) {
	return c.fetchCandidates(ctx, "/api/v1/accounts/"+url.PathEscape(account)+"/history", limit)
}

// Pool returns the raw candidate pool for the account.
func (c *Client) Pool(ctx context.Context, account string, limit int) ([]models.Candidate, error) {
	return c.fetchCandidates(ctx, "/api/v1/accounts/"+url.PathEscape(account)+"/pool", limit)
}

func (c *Client) fetchCandidates(ctx context.Context, path string, limit int) ([]models.Candidate, error) {
	reqURL := c.baseURL + path + "?limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scraper returned status %d", resp.StatusCode)
	}

	var result candidatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("Fetched candidates",
		logger.String("path", path),
		logger.Int("count", len(result.Items)),
		logger.Duration("duration", time.Since(start)),
	)

	return result.Items, nil
}

// Download fetches a media payload. The caller owns the returned buffer
// and must release it before downloading the next payload.
func (c *Client) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return data, nil
}
