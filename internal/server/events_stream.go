package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/events"
	"github.com/rs/zerolog"
)

const (
	eventBufferSize   = 100
	heartbeatInterval = 30 * time.Second
)

// eventSubscription forwards bus events to a buffered channel. Events are
// dropped when the channel is full so a slow client never blocks emitters.
type eventSubscription struct {
	bus *events.Bus
	ids []events.SubscriptionID
	ch  chan *events.Event
}

// subscribeEvents subscribes to the given types, or to all types when the
// set is empty.
func subscribeEvents(bus *events.Bus, allowed map[events.EventType]bool, log zerolog.Logger) *eventSubscription {
	sub := &eventSubscription{
		bus: bus,
		ch:  make(chan *events.Event, eventBufferSize),
	}

	handler := func(event *events.Event) {
		select {
		case sub.ch <- event:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	if len(allowed) == 0 {
		sub.ids = bus.SubscribeAll(handler)
		return sub
	}
	for _, eventType := range events.AllEventTypes {
		if allowed[eventType] {
			sub.ids = append(sub.ids, bus.Subscribe(eventType, handler))
		}
	}
	return sub
}

func (s *eventSubscription) close() {
	s.bus.Unsubscribe(s.ids...)
}

// parseTypes reads the comma separated ?types= filter.
func parseTypes(r *http.Request) map[events.EventType]bool {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			allowed[events.EventType(strings.ToUpper(t))] = true
		}
	}
	return allowed
}

// wireEvent is the JSON shape pushed to stream and websocket clients.
type wireEvent struct {
	Type      string      `json:"type"`
	Module    string      `json:"module,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func newWireEvent(event *events.Event) wireEvent {
	return wireEvent{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Data:      event.Data,
	}
}

func controlEvent(kind string) wireEvent {
	return wireEvent{Type: kind, Timestamp: time.Now().Format(time.RFC3339)}
}

// EventsStreamHandler streams bus events as Server-Sent Events.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	allowed := parseTypes(r)
	sub := subscribeEvents(h.eventBus, allowed, h.log)
	defer sub.close()

	h.log.Info().Int("types", len(sub.ids)).Msg("Client connected to event stream")

	h.send(w, controlEvent("connected"))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-sub.ch:
			h.send(w, newWireEvent(event))
			flusher.Flush()

		case <-heartbeat.C:
			h.send(w, controlEvent("heartbeat"))
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) send(w http.ResponseWriter, event wireEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event_type", event.Type).Msg("Failed to marshal event")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
