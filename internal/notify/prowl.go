// Package notify pushes operator notifications for events that need a human:
// unparseable alerts, halted trading loops.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"alerttrader/internal/config"
	"alerttrader/internal/observ"
)

// Prowl sends push notifications through the Prowl gateway.
type Prowl struct {
	endpoint string
	apiKey   string
	appName  string
	client   *http.Client
}

func NewProwl(cfg config.Notify) *Prowl {
	return &Prowl{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		appName:  cfg.AppName,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send pushes one notification. Priority ranges -2..2 with 2 being
// emergency; it maps straight onto the gateway's priority field.
func (p *Prowl) Send(ctx context.Context, message string, priority int) error {
	form := url.Values{
		"apikey":      {p.apiKey},
		"application": {p.appName},
		"event":       {"trading"},
		"description": {message},
		"priority":    {strconv.Itoa(priority)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification gateway returned %d", resp.StatusCode)
	}
	observ.Debug("notification_sent", map[string]any{"priority": priority})
	return nil
}

// Nop discards notifications; used when notify.enabled is false.
type Nop struct{}

func (Nop) Send(context.Context, string, int) error { return nil }
