package realtime

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pippin-app/realtime-go/shared"
)

type EventType string

// Server event types the session reacts to. Everything else arriving on the
// data channel is retained as a GenericEvent (parsed) or RawEvent (not).
const (
	EventTypeSpeechStarted        EventType = "input_audio_buffer.speech_started"
	EventTypeSpeechStopped        EventType = "input_audio_buffer.speech_stopped"
	EventTypeOutputAudioStarted   EventType = "output_audio_buffer.started"
	EventTypeOutputAudioStopped   EventType = "output_audio_buffer.stopped"
	EventTypeFunctionCall         EventType = "function_call"
	EventTypeFunctionCallArgsDone EventType = "response.function_call_arguments.done"
)

// Client event types the session sends.
const (
	EventTypeConversationItemCreate EventType = "conversation.item.create"
)

// InboundEvent is one entry of the session event log. Each data-channel
// message decodes to exactly one variant, once, at the router boundary.
type InboundEvent interface {
	EventType() EventType
}

type SpeechStartedEvent struct {
	EventId      string
	AudioStartMs int
}

func (e *SpeechStartedEvent) EventType() EventType { return EventTypeSpeechStarted }

type SpeechStoppedEvent struct {
	EventId    string
	AudioEndMs int
}

func (e *SpeechStoppedEvent) EventType() EventType { return EventTypeSpeechStopped }

type OutputAudioStartedEvent struct {
	EventId    string
	ResponseId string
}

func (e *OutputAudioStartedEvent) EventType() EventType { return EventTypeOutputAudioStarted }

type OutputAudioStoppedEvent struct {
	EventId    string
	ResponseId string
}

func (e *OutputAudioStoppedEvent) EventType() EventType { return EventTypeOutputAudioStopped }

// FunctionCallDoneEvent covers both the legacy "function_call" marker and
// "response.function_call_arguments.done". Arguments may arrive either as a
// JSON-encoded string or as an already-structured object.
type FunctionCallDoneEvent struct {
	Type      EventType
	EventId   string
	CallId    string
	Name      string
	Arguments any
}

func (e *FunctionCallDoneEvent) EventType() EventType { return e.Type }

// Qualifies reports whether the event should trigger function execution:
// both name and arguments must be present and non-empty.
func (e *FunctionCallDoneEvent) Qualifies() bool {
	if e.Name == "" {
		return false
	}
	switch args := e.Arguments.(type) {
	case nil:
		return false
	case string:
		return args != ""
	case map[string]any:
		return len(args) > 0
	default:
		return true
	}
}

// Request normalizes the raw arguments into a FunctionCallRequest. A string
// payload is parsed as JSON; failure aborts this call only, not the session.
func (e *FunctionCallDoneEvent) Request() (*FunctionCallRequest, error) {
	req := &FunctionCallRequest{Name: e.Name}
	switch args := e.Arguments.(type) {
	case string:
		if err := sonic.UnmarshalString(args, &req.Arguments); err != nil {
			return nil, fmt.Errorf("%w: function arguments: %v", shared.ErrParse, err)
		}
	case map[string]any:
		req.Arguments = args
	default:
		return nil, fmt.Errorf("%w: function arguments are neither string nor object", shared.ErrParse)
	}
	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}
	return req, nil
}

// GenericEvent is any well-formed event with an unrecognized type. It stays
// in the log but drives no state transition.
type GenericEvent struct {
	Type   EventType
	Fields map[string]any
}

func (e *GenericEvent) EventType() EventType { return e.Type }

// RawEvent retains a data-channel message that failed to parse as JSON.
type RawEvent struct {
	Data string
}

func (e *RawEvent) EventType() EventType { return "" }

// ParseInbound decodes a data-channel message into the event union. It never
// fails: malformed payloads come back as a RawEvent carrying the original
// bytes.
func ParseInbound(data []byte) InboundEvent {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return &RawEvent{Data: string(data)}
	}
	typ, ok := raw["type"].(string)
	if !ok {
		return &RawEvent{Data: string(data)}
	}
	eventId, _ := raw["event_id"].(string)
	switch EventType(typ) {
	case EventTypeSpeechStarted:
		ev := &SpeechStartedEvent{EventId: eventId}
		if ms, ok := asInt(raw["audio_start_ms"]); ok {
			ev.AudioStartMs = ms
		}
		return ev
	case EventTypeSpeechStopped:
		ev := &SpeechStoppedEvent{EventId: eventId}
		if ms, ok := asInt(raw["audio_end_ms"]); ok {
			ev.AudioEndMs = ms
		}
		return ev
	case EventTypeOutputAudioStarted:
		ev := &OutputAudioStartedEvent{EventId: eventId}
		ev.ResponseId, _ = raw["response_id"].(string)
		return ev
	case EventTypeOutputAudioStopped:
		ev := &OutputAudioStoppedEvent{EventId: eventId}
		ev.ResponseId, _ = raw["response_id"].(string)
		return ev
	case EventTypeFunctionCall, EventTypeFunctionCallArgsDone:
		ev := &FunctionCallDoneEvent{Type: EventType(typ), EventId: eventId}
		ev.CallId, _ = raw["call_id"].(string)
		ev.Name, _ = raw["name"].(string)
		ev.Arguments = raw["arguments"]
		return ev
	default:
		delete(raw, "type")
		return &GenericEvent{Type: EventType(typ), Fields: raw}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	}
	return 0, false
}

// FunctionCallRequest is the normalized form handed to the executor.
type FunctionCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// FunctionCallResult is what the backend returns for an executed call. Only
// Status == "ok" triggers a follow-up conversation message.
type FunctionCallResult struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
}

func (r *FunctionCallResult) OK() bool { return r.Status == "ok" }

// ClientEvent is an event the session sends over the data channel.
type ClientEvent interface {
	MarshalJSON() ([]byte, error)
}

// ConversationItemCreateEvent injects a single assistant text message into
// the conversation.
type ConversationItemCreateEvent struct {
	EventId string
	Text    string
}

var _ ClientEvent = (*ConversationItemCreateEvent)(nil)

// NewConversationMessage builds the envelope for one assistant text message.
func NewConversationMessage(text string) *ConversationItemCreateEvent {
	return &ConversationItemCreateEvent{
		EventId: uuid.NewString(),
		Text:    text,
	}
}

func (e *ConversationItemCreateEvent) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(map[string]any{
		"event_id": e.EventId,
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": e.Text},
			},
		},
	})
}
