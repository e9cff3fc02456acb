// Package tracker reports pipeline progress to the external upload tracking
// service. Calls are fire-and-forget from the pipeline's point of view: the
// tracker retries with backoff and the pipeline only logs exhaustion.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MaxDreger92/matgraph-backend/internal/util"
)

// Update is one PATCH payload against a tracked upload. All result blobs are
// JSON documents rendered to strings, which is how the tracking service
// stores them.
type Update struct {
	Processing    *bool  `json:"processing,omitempty"`
	Context       string `json:"context,omitempty"`
	Progress      string `json:"progress,omitempty"`
	LabelDict     string `json:"labelDict,omitempty"`
	AttributeDict string `json:"attributeDict,omitempty"`
	Workflow      string `json:"workflow,omitempty"`
	GraphJSON     string `json:"graph_json,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Client talks to the upload tracking service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// NewClient builds a tracker client from environment configuration.
func NewClient() *Client {
	return &Client{
		baseURL: util.GetEnv("TRACKER_URL"),
		apiKey:  util.GetEnv("TRACKER_API_KEY"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: int(util.GetEnvNumeric("TRACKER_MAX_RETRIES", 3)),
	}
}

// Patch updates the tracked upload. Retries with exponential backoff;
// returns the last error after exhaustion.
func (c *Client) Patch(ctx context.Context, uploadID string, update Update) error {
	return c.send(ctx, http.MethodPatch, fmt.Sprintf("%s/uploads/%s", c.baseURL, uploadID), update)
}

// MarkProcessing flips the upload's processing flag.
func (c *Client) MarkProcessing(ctx context.Context, uploadID string, processing bool) error {
	return c.Patch(ctx, uploadID, Update{Processing: &processing})
}

// ReportStage attaches one stage's result blob to the upload.
func (c *Client) ReportStage(ctx context.Context, uploadID string, update Update) error {
	return c.Patch(ctx, uploadID, update)
}

func (c *Client) send(ctx context.Context, method, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode tracker payload: %w", err)
	}

	return util.RetryBackoff(ctx, c.maxRetries, time.Second, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode >= 400 {
			return fmt.Errorf("tracker responded with status %d", res.StatusCode)
		}
		return nil
	})
}
