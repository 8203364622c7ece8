package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"alerttrader/internal/observ"
)

// TokenSource supplies bearer tokens and knows how to renew them. *Session
// implements it; tests substitute a stub.
type TokenSource interface {
	Token() string
	EnsureValid(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// RetryPolicy controls the single-retry behavior of the transport. Sleep is
// injectable so tests can record waits instead of serving them.
type RetryPolicy struct {
	ConflictWait  time.Duration
	RateLimitWait time.Duration
	Sleep         func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ConflictWait:  15 * time.Second,
		RateLimitWait: 30 * time.Second,
		Sleep:         time.Sleep,
	}
}

// Client is the venue HTTP transport. Every request is retried at most once,
// per the status-specific rules in do.
type Client struct {
	baseURL    string
	accountKey string
	session    TokenSource
	http       *http.Client
	policy     RetryPolicy
}

func NewClient(baseURL, accountKey string, session TokenSource, policy RetryPolicy) *Client {
	if policy.Sleep == nil {
		policy.Sleep = time.Sleep
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountKey: accountKey,
		session:    session,
		http:       &http.Client{Timeout: 30 * time.Second},
		policy:     policy,
	}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, "", out)
}

// postAs issues a POST carrying a method-override header. The venue accepts
// DELETE and PATCH only via override on some endpoints.
func (c *Client) postAs(ctx context.Context, path string, body any, override string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, override, out)
}

// do sends the request and applies the retry table: 401 refreshes the
// session, 409 waits out the venue's order-modification lock, 429 honors the
// reset header. Each retries exactly once; a second failure surfaces.
func (c *Client) do(ctx context.Context, method, path string, body any, override string, out any) error {
	retried := false
	for {
		resp, respBody, err := c.send(ctx, method, path, body, override)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode %s %s: %w", method, path, err)
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized && !retried:
			observ.Warn("venue_unauthorized_refresh", map[string]any{"path": path})
			if err := c.session.Refresh(ctx); err != nil {
				return err
			}

		case resp.StatusCode == http.StatusConflict && !retried:
			observ.Warn("venue_conflict_wait", map[string]any{"path": path, "wait": c.policy.ConflictWait.String()})
			c.policy.Sleep(c.policy.ConflictWait)

		case resp.StatusCode == http.StatusTooManyRequests && !retried:
			wait := c.policy.RateLimitWait
			if secs, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Session-Reset")); err == nil {
				wait = time.Duration(secs) * time.Second
			}
			observ.Warn("venue_rate_limited", map[string]any{"path": path, "wait": wait.String()})
			c.policy.Sleep(wait)

		case resp.StatusCode == http.StatusNotFound:
			return &APIError{Status: resp.StatusCode, Path: path, Body: string(respBody)}

		default:
			observ.Error("venue_error_response", nil, map[string]any{
				"path":   path,
				"status": resp.StatusCode,
				"body":   string(respBody),
			})
			return &APIError{Status: resp.StatusCode, Path: path, Body: string(respBody)}
		}

		retried = true
		observ.IncCounter("venue_retries_total", map[string]string{"status": strconv.Itoa(resp.StatusCode)})
	}
}

func (c *Client) send(ctx context.Context, method, path string, body any, override string) (*http.Response, []byte, error) {
	if err := c.session.EnsureValid(ctx); err != nil {
		return nil, nil, err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if override != "" {
		req.Header.Set("X-HTTP-Method-Override", override)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return resp, respBody, nil
}

// Positions fetches all of the account's positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var list PositionList
	if err := c.Get(ctx, "/port/v1/positions/me", &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// Orders fetches the account's open orders.
func (c *Client) Orders(ctx context.Context) ([]OrderResponse, error) {
	var list struct {
		Data []OrderResponse `json:"Data"`
	}
	path := "/port/v1/orders?ClientKey=" + c.accountKey
	if err := c.Get(ctx, path, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// PlaceOrder submits an order, with attached orders if present.
func (c *Client) PlaceOrder(ctx context.Context, order OrderRequest) (OrderResponse, error) {
	order.AccountKey = c.accountKey
	var resp OrderResponse
	if err := c.Post(ctx, "/trade/v2/orders", order, &resp); err != nil {
		return OrderResponse{}, err
	}
	return resp, nil
}

// CancelOrders cancels the given order ids.
func (c *Client) CancelOrders(ctx context.Context, orderIDs ...string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	path := fmt.Sprintf("/trade/v2/orders/%s/?AccountKey=%s", strings.Join(orderIDs, ","), c.accountKey)
	return c.postAs(ctx, path, nil, http.MethodDelete, nil)
}
