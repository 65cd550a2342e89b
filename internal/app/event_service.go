package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/statuslight/internal/eventbus"
)

// DefaultEventHistory is how many loop events the status endpoint shows.
const DefaultEventHistory = 20

// EventRecord is a loop event as exposed by the status endpoint.
type EventRecord struct {
	Type  eventbus.EventType `json:"type"`
	Cycle string             `json:"cycle,omitempty"`
	Time  time.Time          `json:"time"`
	Data  map[string]any     `json:"data,omitempty"`
}

// EventService subscribes to the event bus and keeps the most recent
// loop events in memory.
type EventService struct {
	bus  *eventbus.Bus
	size int

	mu     sync.Mutex
	events []EventRecord // oldest first
}

// NewEventService creates a new EventService keeping up to size events.
func NewEventService(bus *eventbus.Bus, size int) *EventService {
	if size <= 0 {
		size = DefaultEventHistory
	}
	return &EventService{bus: bus, size: size}
}

// Start sets up the event handlers.
func (s *EventService) Start() {
	s.bus.SubscribeAll(s.record)
	s.bus.Subscribe(eventbus.EventShutdown, func(event eventbus.Event) {
		ok, _ := event.Data["succeeded"].(bool)
		log.Debug().Bool("light_off", ok).Msg("Shutdown event delivered")
	})
}

func (s *EventService) record(event eventbus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, EventRecord{
		Type:  event.Type,
		Cycle: event.Cycle,
		Time:  event.Time,
		Data:  event.Data,
	})
	if over := len(s.events) - s.size; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
}

// Recent returns the kept events, newest first.
func (s *EventService) Recent() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EventRecord, len(s.events))
	for i, e := range s.events {
		out[len(s.events)-1-i] = e
	}
	return out
}
