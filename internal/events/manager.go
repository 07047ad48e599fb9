package events

import "github.com/rs/zerolog"

// Manager is the emitting side handed to services. It logs every event
// before publishing it on the bus.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "events").Logger(),
	}
}

// Emit publishes typed event data on the bus.
func (m *Manager) Emit(module string, data EventData) {
	if data == nil {
		return
	}
	eventType := data.EventType()

	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Event emitted")

	m.bus.Emit(eventType, module, data)
}

// EmitError publishes an ErrorOccurred event.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	m.log.Error().Err(err).Str("module", module).Msg("Error event")
	m.bus.Emit(ErrorOccurred, module, &ErrorEventData{Error: err.Error(), Context: context})
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}
