package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ivankudzin/shipyard/internal/domain/model"
	authsvc "github.com/ivankudzin/shipyard/internal/services/auth"
	"github.com/ivankudzin/shipyard/internal/services/realtime"
	"github.com/ivankudzin/shipyard/internal/transport/http/dto"
)

const (
	defaultPingInterval = 30 * time.Second
	streamWriteTimeout  = 10 * time.Second
	streamReadLimit     = 4096
)

type StreamHandler struct {
	service      *realtime.Service
	resp         *Responder
	log          *zap.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func NewStreamHandler(service *realtime.Service, resp *Responder, log *zap.Logger, pingInterval time.Duration) *StreamHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &StreamHandler{
		service: service,
		resp:    resp,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		pingInterval: pingInterval,
	}
}

// Serve authorizes the caller, upgrades to a WebSocket and relays new messages
// of one conversation until either side goes away.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var since time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeBadRequest(w, "Invalid since timestamp")
			return
		}
		since = parsed
	}

	conversationID := conversationIDParam(r)
	stream, err := h.service.Open(r.Context(), conversationID, identity.UserID, since)
	if err != nil {
		if errors.Is(err, realtime.ErrForbidden) {
			h.resp.Debug("stream access denied", zap.Error(err))
			writeForbidden(w)
			return
		}
		h.resp.Internal(w, r, "Failed to open stream", err)
		return
	}
	defer func() { _ = stream.Close() }()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the failure response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	log := h.log.With(
		zap.String("conversation_id", conversationID),
		zap.String("user_id", identity.UserID),
	)
	log.Debug("stream opened", zap.Int("backlog", len(stream.Backlog)))

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	for _, msg := range stream.Backlog {
		if err := h.writeMessage(conn, msg); err != nil {
			log.Debug("stream backlog write failed", zap.Error(err))
			return
		}
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			log.Debug("stream closed by client")
			return
		case msg, ok := <-stream.Events():
			if !ok {
				return
			}
			if !stream.Fresh(msg) {
				continue
			}
			if err := h.writeMessage(conn, msg); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug("stream ping failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump drains client frames so control frames are processed, and closes
// done when the peer disconnects.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writeMessage(conn *websocket.Conn, msg model.Message) error {
	payload := messageResponse(msg)
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(dto.StreamFrame{Type: "message", Message: &payload})
}
