package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const wsWriteTimeout = 5 * time.Second

// WebSocketHandler pushes bus events to websocket clients.
type WebSocketHandler struct {
	eventBus *events.Bus
	devMode  bool
	log      zerolog.Logger
}

// NewWebSocketHandler creates a new websocket event handler. devMode accepts
// connections from any origin.
func NewWebSocketHandler(eventBus *events.Bus, devMode bool, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		eventBus: eventBus,
		devMode:  devMode,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	sub := subscribeEvents(h.eventBus, parseTypes(r), h.log)
	defer sub.close()

	// Clients only listen; CloseRead cancels ctx when they disconnect.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Int("types", len(sub.ids)).Msg("Client connected to websocket")

	if err := h.write(ctx, conn, controlEvent("connected")); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from websocket")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-sub.ch:
			if err := h.write(ctx, conn, newWireEvent(event)); err != nil {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, conn *websocket.Conn, event wireEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Str("event_type", event.Type).Msg("Websocket write failed")
		return err
	}
	return nil
}
