package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"alerttrader/internal/observ"
)

// FeedConfig configures the HTTP polling feed.
type FeedConfig struct {
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	Buffer       int
}

// HTTPFeed implements Feed by polling the ingestion collaborator's alert
// endpoint with cursor-based pagination. It turns the pull API into the
// push-style watch loop the executor consumes.
type HTTPFeed struct {
	config     FeedConfig
	url        string
	alertChan  chan Alert
	lastCursor string

	client *http.Client
	cancel context.CancelFunc
}

// NewHTTPFeed creates a new polling feed against the ingestion service.
func NewHTTPFeed(config FeedConfig) (*HTTPFeed, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("feed base URL is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Buffer <= 0 {
		config.Buffer = 100
	}

	return &HTTPFeed{
		config:    config,
		url:       config.BaseURL + "/alerts",
		alertChan: make(chan Alert, config.Buffer),
		client:    &http.Client{Timeout: config.Timeout},
	}, nil
}

// Watch begins polling and returns the alert channel.
func (f *HTTPFeed) Watch(ctx context.Context) (<-chan Alert, error) {
	ctx, f.cancel = context.WithCancel(ctx)

	go f.pollLoop(ctx)

	return f.alertChan, nil
}

// Close shuts down the feed.
func (f *HTTPFeed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	return nil
}

func (f *HTTPFeed) pollLoop(ctx context.Context) {
	defer close(f.alertChan)

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.pollOnce(ctx); err != nil {
				observ.Error("feed_poll_error", err, nil)
				observ.IncCounter("feed_poll_errors_total", nil)
			}
		}
	}
}

// pollOnce performs a single poll request and forwards any new alerts.
func (f *HTTPFeed) pollOnce(ctx context.Context) error {
	pollURL := f.url
	if f.lastCursor != "" {
		u, err := url.Parse(pollURL)
		if err != nil {
			return fmt.Errorf("parse poll url: %w", err)
		}
		q := u.Query()
		q.Set("cursor", f.lastCursor)
		u.RawQuery = q.Encode()
		pollURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pollURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var response struct {
		Alerts []Alert `json:"alerts"`
		Cursor string  `json:"cursor"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	for _, a := range response.Alerts {
		select {
		case f.alertChan <- a:
			observ.IncCounter("feed_alerts_total", nil)
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Channel full, drop alert. The executor is strictly serial, so a
			// sustained backlog means it is stuck on venue pacing anyway.
			observ.Warn("feed_backpressure_drop", map[string]any{"alert_id": a.ID})
		}
	}

	if response.Cursor != "" {
		f.lastCursor = response.Cursor
	}

	return nil
}
