// Package crawl talks to the hosted Apify crawling service. A crawl is
// submitted synchronously: the actor run call blocks until the remote job
// finishes, then the run's dataset items are retrieved.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/appvine/apptrack/internal/apperr"
)

// Page is one crawled-page record as the service returns it. Order and
// count are determined entirely by the remote crawler.
type Page struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
}

// Config controls the Apify client.
type Config struct {
	Token              string
	Actor              string
	BaseURL            string
	Wait               time.Duration
	DefaultMaxRequests int
	HTTPClient         *http.Client
}

// Client submits actor runs and fetches their dataset items.
type Client struct {
	token      string
	actor      string
	baseURL    string
	wait       time.Duration
	defaultMax int
	httpClient *http.Client
}

// NewClient builds an Apify client. The token is the service credential; its
// absence is a configuration fault, not a caller error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, apperr.Configuration("apify token is not configured")
	}
	if cfg.Actor == "" {
		cfg.Actor = "apify~website-content-crawler"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.apify.com"
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 120 * time.Second
	}
	if cfg.DefaultMaxRequests <= 0 {
		cfg.DefaultMaxRequests = 10
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// The run call holds the connection open until the remote job
		// completes, so the client timeout must exceed the wait budget.
		httpClient = &http.Client{Timeout: cfg.Wait + 30*time.Second}
	}
	return &Client{
		token:      cfg.Token,
		actor:      cfg.Actor,
		baseURL:    cfg.BaseURL,
		wait:       cfg.Wait,
		defaultMax: cfg.DefaultMaxRequests,
		httpClient: httpClient,
	}, nil
}

type runInput struct {
	StartURLs           []startURL `json:"startUrls"`
	MaxRequestsPerCrawl int        `json:"maxRequestsPerCrawl"`
}

type startURL struct {
	URL string `json:"url"`
}

type runResponse struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// Run submits a crawl of target and returns the resulting page records. It
// blocks until the remote job completes or ctx expires.
func (c *Client) Run(ctx context.Context, target string, maxRequests int) ([]Page, error) {
	if target == "" {
		return nil, apperr.InvalidInput("url is required")
	}
	if maxRequests <= 0 {
		maxRequests = c.defaultMax
	}

	run, err := c.startRun(ctx, target, maxRequests)
	if err != nil {
		return nil, err
	}
	if run.Data.Status != "SUCCEEDED" {
		return nil, apperr.External(
			fmt.Sprintf("crawl run %s finished with status %s", run.Data.ID, run.Data.Status),
			0, nil,
		)
	}
	return c.datasetItems(ctx, run.Data.DefaultDatasetID)
}

func (c *Client) startRun(ctx context.Context, target string, maxRequests int) (runResponse, error) {
	input := runInput{
		StartURLs:           []startURL{{URL: target}},
		MaxRequestsPerCrawl: maxRequests,
	}
	body, err := json.Marshal(input)
	if err != nil {
		return runResponse{}, fmt.Errorf("marshal run input: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/v2/acts/%s/runs?waitForFinish=%d",
		c.baseURL, url.PathEscape(c.actor), int(c.wait.Seconds()),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return runResponse{}, fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The token travels in a header so it stays out of access logs.
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return runResponse{}, apperr.External("crawl run request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return runResponse{}, apperr.External(
			fmt.Sprintf("crawl service returned status %d", resp.StatusCode),
			resp.StatusCode,
			fmt.Errorf("%s", readErrorBody(resp.Body)),
		)
	}

	var run runResponse
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return runResponse{}, apperr.External("decode crawl run response", 0, err)
	}
	return run, nil
}

func (c *Client) datasetItems(ctx context.Context, datasetID string) ([]Page, error) {
	if datasetID == "" {
		return nil, apperr.External("crawl run has no dataset", 0, nil)
	}
	endpoint := fmt.Sprintf(
		"%s/v2/datasets/%s/items",
		c.baseURL, url.PathEscape(datasetID),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.External("dataset items request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.External(
			fmt.Sprintf("dataset service returned status %d", resp.StatusCode),
			resp.StatusCode,
			fmt.Errorf("%s", readErrorBody(resp.Body)),
		)
	}

	var pages []Page
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, apperr.External("decode dataset items", 0, err)
	}
	return pages, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return "no response body"
	}
	return string(b)
}
