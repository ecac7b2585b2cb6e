package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/storyforge/internal/schema"
	"github.com/jackzampolin/storyforge/internal/status"
)

// FetchStatus reads GET /api/status. Every failure (transport, HTTP or
// payload shape) is wrapped in ErrStatusUnavailable.
func (c *Client) FetchStatus(ctx context.Context) (*status.Snapshot, error) {
	body, err := c.get(ctx, "/api/status")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}
	snap, err := status.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusUnavailable, err)
	}
	return snap, nil
}

// Concurrency holds the backend's generation limits.
type Concurrency struct {
	Image           int `json:"image" yaml:"image"`
	Video           int `json:"video" yaml:"video"`
	VideoMaxRetries int `json:"video_max_retries" yaml:"video_max_retries"` // reported only
}

// DefaultConcurrency mirrors the backend's own defaults.
var DefaultConcurrency = Concurrency{Image: 2, Video: 1, VideoMaxRetries: 10}

type configResponse struct {
	envelope
	Config struct {
		Generation struct {
			VideoMaxRetries *int `json:"video_max_retries"`
			Concurrency     struct {
				Image *int `json:"image"`
				Video *int `json:"video"`
			} `json:"concurrency"`
		} `json:"generation"`
	} `json:"config"`
}

// Concurrency reads generation limits from GET /api/config. Missing values
// fall back to DefaultConcurrency.
func (c *Client) Concurrency(ctx context.Context) (Concurrency, error) {
	body, err := c.get(ctx, "/api/config")
	if err != nil {
		return Concurrency{}, fmt.Errorf("failed to read backend config: %w", err)
	}
	if err := schema.Validate("Config", body); err != nil {
		return Concurrency{}, err
	}

	var resp configResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Concurrency{}, fmt.Errorf("failed to decode backend config: %w", err)
	}
	if resp.failed() {
		return Concurrency{}, fmt.Errorf("backend config unavailable: %s", resp.Error)
	}

	out := DefaultConcurrency
	gen := resp.Config.Generation
	if v := gen.Concurrency.Image; v != nil && *v > 0 {
		out.Image = *v
	}
	if v := gen.Concurrency.Video; v != nil && *v > 0 {
		out.Video = *v
	}
	if v := gen.VideoMaxRetries; v != nil && *v >= 0 {
		out.VideoMaxRetries = *v
	}
	return out, nil
}
