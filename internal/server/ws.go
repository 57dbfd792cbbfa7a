package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	wsReadLimit    = 64 * 1024
	wsPongWait     = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleWS serves one prediction per text message. Each message is a
// PredictionRequest; each reply is a PredictionResponse, with Error set when
// the request failed. The connection survives failed requests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.count("/ws", http.StatusBadRequest)
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.count("/ws", http.StatusSwitchingProtocols)
	defer conn.Close()

	if s.metrics != nil {
		clients := s.metrics.WSClients()
		clients.Add(1)
		defer clients.Add(-1)
	}

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	replies := make(chan PredictionResponse, 16)
	done := make(chan struct{})
	go s.wsWriter(ctx, conn, replies, done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket client closed unexpectedly")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var req PredictionRequest
		var resp PredictionResponse
		if err := json.Unmarshal(msg, &req); err != nil {
			resp = PredictionResponse{Error: "invalid request: " + err.Error()}
		} else {
			reqCtx, reqCancel := context.WithTimeout(ctx, s.timeout)
			resp, _ = s.predict(reqCtx, req)
			reqCancel()
		}

		select {
		case replies <- resp:
		case <-done:
			return
		}
	}
	close(replies)
	<-done
}

// wsWriter owns all writes to conn.
func (s *Server) wsWriter(ctx context.Context, conn *websocket.Conn, replies <-chan PredictionResponse, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-replies:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(resp); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
