package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"calltrack/internal/domain"
)

// Client triggers the provider endpoints over HTTP. The simulated provider
// lives in this same binary, so these are loopback calls, but the transport
// mirrors a real third-party integration: bearer auth in, plain webhook out.
type Client struct {
	BaseURL   string
	AuthToken string
	HTTP      *http.Client

	// Limiter caps dispatch triggers, like any outbound provider call.
	Limiter *rate.Limiter
}

const (
	sendCallPath       = "/v1/provider/send-call"
	statusCallbackPath = "/v1/webhooks/provider-status"
)

// SendCall asks the provider to accept the dispatch for a call.
func (c *Client) SendCall(ctx context.Context, req domain.DispatchRequest) (domain.DispatchResponse, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return domain.DispatchResponse{}, err
		}
	}

	var out domain.DispatchResponse
	if err := c.postJSON(ctx, sendCallPath, req, &out, true); err != nil {
		return domain.DispatchResponse{}, err
	}
	return out, nil
}

// PostStatus delivers the provider's outcome webhook. One attempt, no retry;
// delivery here is deliberately fire-and-forget.
func (c *Client) PostStatus(ctx context.Context, req domain.StatusCallbackRequest) error {
	return c.postJSON(ctx, statusCallbackPath, req, nil, false)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any, authed bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authed && c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider call %s failed: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.New("provider call " + path + ": malformed response")
	}
	return nil
}
