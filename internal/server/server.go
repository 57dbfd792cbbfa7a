// Package server is the serving loop: it exposes the loaded predictor over
// HTTP and WebSocket, journals served predictions and reports health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"forecast-miner/internal/dataset"
	"forecast-miner/internal/forecast"
	"forecast-miner/internal/metrics"
	"forecast-miner/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// Journal persists served predictions.
type Journal interface {
	RecordPrediction(storage.PredictionRecord) error
}

// MetricsInterface defines metrics methods needed by the server.
type MetricsInterface interface {
	RequestsInc(route string, code int)
	WSClients() metrics.MetricsGauge
}

// ModelInfo describes what discovery loaded.
type ModelInfo struct {
	Ready     bool      `json:"ready"`
	Root      string    `json:"root"`
	Module    string    `json:"module,omitempty"`
	Model     string    `json:"model,omitempty"`
	Data      string    `json:"data,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Policy    string    `json:"policy,omitempty"`
	DataStart time.Time `json:"data_start,omitempty"`
	DataEnd   time.Time `json:"data_end,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
	Error     string    `json:"error,omitempty"`
}

// PredictionRequest represents the incoming prediction request
type PredictionRequest struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	RequestID  string             `json:"request_id"`
	Timestamp  string             `json:"timestamp"`
	Prediction float64            `json:"prediction"`
	Interval   *forecast.Interval `json:"interval,omitempty"`
	Policy     string             `json:"policy,omitempty"`
	Latency    float64            `json:"latency_ms"`
	Error      string             `json:"error,omitempty"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Error  string `json:"error,omitempty"`
	Uptime string `json:"uptime"`
}

// Server provides the HTTP API for predictions
type Server struct {
	predictor forecast.Predictor
	info      ModelInfo
	journal   Journal
	metrics   MetricsInterface
	gatherer  prometheus.Gatherer
	timeout   time.Duration
	started   time.Time
	upgrader  websocket.Upgrader
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithJournal records every successful prediction.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetrics attaches serving metrics.
func WithMetrics(m MetricsInterface) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRequestTimeout bounds each request's context. The predictor checks the
// context before calling the implementation but cannot interrupt a call in
// progress, so 504 is only returned when the deadline has already passed.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a server for predictor. A degraded miner passes a
// forecast.Unavailable and info with Ready unset.
func New(predictor forecast.Predictor, info ModelInfo, port int, opts ...Option) *Server {
	s := &Server{
		predictor: predictor,
		info:      info,
		gatherer:  prometheus.DefaultGatherer,
		timeout:   5 * time.Second,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Bool("ready", s.info.Ready).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	switch r.Method {
	case http.MethodGet:
		req.Timestamp = r.URL.Query().Get("timestamp")
		req.RequestID = r.URL.Query().Get("request_id")
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, "/predict", http.StatusBadRequest, PredictionResponse{Error: fmt.Sprintf("invalid request: %v", err)})
			return
		}
	default:
		s.count("/predict", http.StatusMethodNotAllowed)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(requestIDHeader)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp, status := s.predict(ctx, req)
	w.Header().Set(requestIDHeader, resp.RequestID)
	s.writeJSON(w, "/predict", status, resp)
}

// predict serves one request and returns the response with its HTTP status.
func (s *Server) predict(ctx context.Context, req PredictionRequest) (PredictionResponse, int) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	resp := PredictionResponse{RequestID: req.RequestID, Timestamp: req.Timestamp}

	if req.Timestamp == "" {
		resp.Error = "timestamp is required"
		return resp, http.StatusBadRequest
	}

	p, err := s.predictor.Predict(ctx, req.Timestamp)
	resp.Latency = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		}
		resp.Error = err.Error()
		return resp, status
	}

	resp.Prediction = p.Point
	resp.Interval = &forecast.Interval{Low: p.Interval.Low, High: p.Interval.High}
	resp.Policy = p.Policy

	if s.journal != nil {
		rec := storage.PredictionRecord{
			RequestID:  req.RequestID,
			Timestamp:  p.Timestamp,
			Prediction: p.Point,
			Interval:   p.Interval,
			Policy:     p.Policy,
			Source:     s.info.Module,
			ServedAt:   time.Now(),
		}
		if err := s.journal.RecordPrediction(rec); err != nil {
			log.Warn().Err(err).Str("request_id", req.RequestID).Msg("failed to journal prediction")
		}
	}
	return resp, http.StatusOK
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, forecast.ErrMalformedTimestamp):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, dataset.ErrOutOfCoverage), errors.Is(err, dataset.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status: "ok",
		Ready:  s.info.Ready,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	status := http.StatusOK
	if !s.info.Ready {
		health.Status = "degraded"
		health.Error = s.info.Error
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, "/health", status, health)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "/model/info", http.StatusOK, s.info)
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, v any) {
	s.count(route, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Str("route", route).Msg("failed to write response")
	}
}

func (s *Server) count(route string, status int) {
	if s.metrics != nil {
		s.metrics.RequestsInc(route, status)
	}
}
