package realtime

import (
	"sync"

	"github.com/pippin-app/realtime-go/shared"
)

type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusLive
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusLive:
		return "live"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Activity is which party is currently producing audio, as inferred from the
// protocol event markers.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityUser
	ActivityAssistant
)

func (a Activity) String() string {
	switch a {
	case ActivityNone:
		return "none"
	case ActivityUser:
		return "user"
	case ActivityAssistant:
		return "assistant"
	}
	return "unknown"
}

type StatusHandler func(status Status)
type ActivityHandler func(activity Activity)
type EventHandler func(event InboundEvent)

// SessionState is the externally observable state of one session: connection
// status, speaking activity, and the ordered, append-only event log. All
// mutation goes through the router and the client; observers get notified
// synchronously from the mutating callback.
type SessionState struct {
	mu       sync.Mutex
	status   Status
	activity Activity
	events   []InboundEvent

	sh StatusHandler
	ah ActivityHandler
	eh EventHandler
}

func NewSessionState() *SessionState {
	return &SessionState{}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Status   Status
	Activity Activity
	Events   []InboundEvent
}

func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]InboundEvent, len(s.events))
	copy(events, s.events)
	return Snapshot{Status: s.status, Activity: s.activity, Events: events}
}

func (s *SessionState) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *SessionState) Activity() Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity
}

// Events returns a copy of the event log in arrival order.
func (s *SessionState) Events() []InboundEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]InboundEvent, len(s.events))
	copy(events, s.events)
	return events
}

func (s *SessionState) OnStatusChange(handler StatusHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sh != nil {
		return shared.ErrStatusHandlerSet
	}
	s.sh = handler
	return nil
}

func (s *SessionState) OnActivityChange(handler ActivityHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ah != nil {
		return shared.ErrActivityHandlerSet
	}
	s.ah = handler
	return nil
}

func (s *SessionState) OnEvent(handler EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eh != nil {
		return shared.ErrEventHandlerSet
	}
	s.eh = handler
	return nil
}

func (s *SessionState) setStatus(status Status) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	handler := s.sh
	s.mu.Unlock()
	if changed && handler != nil {
		handler(status)
	}
}

func (s *SessionState) setActivity(activity Activity) {
	s.mu.Lock()
	changed := s.activity != activity
	s.activity = activity
	handler := s.ah
	s.mu.Unlock()
	if changed && handler != nil {
		handler(activity)
	}
}

func (s *SessionState) appendEvent(event InboundEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	handler := s.eh
	s.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}
