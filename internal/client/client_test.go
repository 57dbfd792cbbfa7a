package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"forecast-miner/internal/forecast"
	"forecast-miner/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMiner(t *testing.T, p forecast.Predictor, info server.ModelInfo) *Client {
	t.Helper()
	s := server.New(p, info, 0, server.WithGatherer(prometheus.NewRegistry()))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestClient_Predict(t *testing.T) {
	fn := func(string) (float64, *forecast.Interval, error) { return 7.25, nil, nil }
	c := startMiner(t, forecast.NewFuncModel(fn, forecast.FixedPolicy{HalfWidth: 0.25}), server.ModelInfo{Ready: true})

	resp, err := c.Predict(context.Background(), "2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 7.25, resp.Prediction)
	require.NotNil(t, resp.Interval)
	assert.Equal(t, forecast.Interval{Low: 7.0, High: 7.5}, *resp.Interval)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_PredictError(t *testing.T) {
	fn := func(string) (float64, *forecast.Interval, error) { return 1, nil, nil }
	c := startMiner(t, forecast.NewFuncModel(fn, forecast.FixedPolicy{HalfWidth: 1}), server.ModelInfo{Ready: true})

	resp, err := c.Predict(context.Background(), "not a timestamp")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Contains(t, err.Error(), "400")
	assert.NotEmpty(t, resp.Error)
}

func TestClient_Degraded(t *testing.T) {
	reason := errors.New("no implementation module found")
	c := startMiner(t, forecast.NewUnavailable(reason), server.ModelInfo{Error: reason.Error()})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", health.Status)
	assert.False(t, health.Ready)

	_, err = c.Predict(context.Background(), "2024-01-15")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_ModelInfo(t *testing.T) {
	fn := func(string) (float64, *forecast.Interval, error) { return 1, nil, nil }
	info := server.ModelInfo{Ready: true, Module: "impl.go", Signature: "func(string) float64"}
	c := startMiner(t, forecast.NewFuncModel(fn, forecast.FixedPolicy{HalfWidth: 1}), info)

	got, err := c.ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "impl.go", got.Module)
	assert.True(t, got.Ready)
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Health(context.Background())
	assert.Error(t, err)
}
