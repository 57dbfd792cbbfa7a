// Package client queries a running miner over HTTP.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forecast-miner/internal/server"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	rest *resty.Client
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict asks the miner for the forecast at timestamp. A response carrying
// an error message is returned together with a non-nil error.
func (c *Client) Predict(ctx context.Context, timestamp string) (*server.PredictionResponse, error) {
	resp := &server.PredictionResponse{}
	r, err := c.rest.R().
		SetContext(ctx).
		SetBody(server.PredictionRequest{Timestamp: timestamp}).
		SetResult(resp).
		SetError(resp).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	if r.IsError() {
		msg := resp.Error
		if msg == "" {
			msg = strings.TrimSpace(r.String())
		}
		return resp, fmt.Errorf("miner: %d %s", r.StatusCode(), msg)
	}
	return resp, nil
}

// Health returns the miner's health. A degraded miner answers 503 with a
// body; that is reported as a response, not an error.
func (c *Client) Health(ctx context.Context) (*server.HealthResponse, error) {
	health := &server.HealthResponse{}
	r, err := c.rest.R().
		SetContext(ctx).
		SetResult(health).
		SetError(health).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("health request: %w", err)
	}
	if r.IsError() && health.Status == "" {
		return nil, fmt.Errorf("miner: %d %s", r.StatusCode(), strings.TrimSpace(r.String()))
	}
	return health, nil
}

// ModelInfo returns what the miner loaded.
func (c *Client) ModelInfo(ctx context.Context) (*server.ModelInfo, error) {
	info := &server.ModelInfo{}
	r, err := c.rest.R().
		SetContext(ctx).
		SetResult(info).
		Get(c.base + "/model/info")
	if err != nil {
		return nil, fmt.Errorf("model info request: %w", err)
	}
	if r.IsError() {
		return nil, fmt.Errorf("miner: %d %s", r.StatusCode(), strings.TrimSpace(r.String()))
	}
	return info, nil
}
