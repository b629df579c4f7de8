package realtime

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected InboundEvent
	}{
		{
			name:     "speech started",
			data:     `{"type":"input_audio_buffer.speech_started","event_id":"ev_1","audio_start_ms":120}`,
			expected: &SpeechStartedEvent{EventId: "ev_1", AudioStartMs: 120},
		},
		{
			name:     "speech stopped",
			data:     `{"type":"input_audio_buffer.speech_stopped","event_id":"ev_2","audio_end_ms":880}`,
			expected: &SpeechStoppedEvent{EventId: "ev_2", AudioEndMs: 880},
		},
		{
			name:     "output audio started",
			data:     `{"type":"output_audio_buffer.started","event_id":"ev_3","response_id":"resp_1"}`,
			expected: &OutputAudioStartedEvent{EventId: "ev_3", ResponseId: "resp_1"},
		},
		{
			name:     "output audio stopped",
			data:     `{"type":"output_audio_buffer.stopped","event_id":"ev_4","response_id":"resp_1"}`,
			expected: &OutputAudioStoppedEvent{EventId: "ev_4", ResponseId: "resp_1"},
		},
		{
			name: "legacy function call",
			data: `{"type":"function_call","name":"create_task","arguments":"{\"title\":\"pack boxes\"}"}`,
			expected: &FunctionCallDoneEvent{
				Type:      EventTypeFunctionCall,
				Name:      "create_task",
				Arguments: `{"title":"pack boxes"}`,
			},
		},
		{
			name: "function call arguments done",
			data: `{"type":"response.function_call_arguments.done","call_id":"call_1","name":"create_move","arguments":{"id":1}}`,
			expected: &FunctionCallDoneEvent{
				Type:      EventTypeFunctionCallArgsDone,
				CallId:    "call_1",
				Name:      "create_move",
				Arguments: map[string]any{"id": float64(1)},
			},
		},
		{
			name: "unrecognized type stays structured",
			data: `{"type":"session.created","event_id":"ev_5","session":{"id":"sess_1"}}`,
			expected: &GenericEvent{
				Type: "session.created",
				Fields: map[string]any{
					"event_id": "ev_5",
					"session":  map[string]any{"id": "sess_1"},
				},
			},
		},
		{
			name:     "not JSON",
			data:     "definitely not json",
			expected: &RawEvent{Data: "definitely not json"},
		},
		{
			name:     "JSON without type",
			data:     `{"event_id":"ev_6"}`,
			expected: &RawEvent{Data: `{"event_id":"ev_6"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseInbound([]byte(tt.data)))
		})
	}
}

func TestFunctionCallDoneEventQualifies(t *testing.T) {
	tests := []struct {
		name     string
		event    *FunctionCallDoneEvent
		expected bool
	}{
		{
			name:     "name and string arguments",
			event:    &FunctionCallDoneEvent{Name: "create_task", Arguments: `{"title":"x"}`},
			expected: true,
		},
		{
			name:     "name and object arguments",
			event:    &FunctionCallDoneEvent{Name: "create_task", Arguments: map[string]any{"title": "x"}},
			expected: true,
		},
		{
			name:     "missing name",
			event:    &FunctionCallDoneEvent{Arguments: `{"title":"x"}`},
			expected: false,
		},
		{
			name:     "missing arguments",
			event:    &FunctionCallDoneEvent{Name: "create_task"},
			expected: false,
		},
		{
			name:     "empty string arguments",
			event:    &FunctionCallDoneEvent{Name: "create_task", Arguments: ""},
			expected: false,
		},
		{
			name:     "empty object arguments",
			event:    &FunctionCallDoneEvent{Name: "create_task", Arguments: map[string]any{}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.Qualifies())
		})
	}
}

func TestFunctionCallDoneEventRequest(t *testing.T) {
	t.Run("string and object arguments normalize identically", func(t *testing.T) {
		fromString := &FunctionCallDoneEvent{
			Name:      "create_move",
			Arguments: `{"origin_country":"FR","destination_country":"DE"}`,
		}
		fromObject := &FunctionCallDoneEvent{
			Name: "create_move",
			Arguments: map[string]any{
				"origin_country":      "FR",
				"destination_country": "DE",
			},
		}
		reqString, err := fromString.Request()
		require.NoError(t, err)
		reqObject, err := fromObject.Request()
		require.NoError(t, err)
		assert.Equal(t, reqObject, reqString)
	})

	t.Run("malformed string arguments fail with parse error", func(t *testing.T) {
		event := &FunctionCallDoneEvent{Name: "create_move", Arguments: `{"broken`}
		_, err := event.Request()
		require.Error(t, err)
	})
}

func TestConversationItemCreateEventMarshal(t *testing.T) {
	event := NewConversationMessage("Your task has been created: ID 3, title pack boxes.")
	payload, err := event.MarshalJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &decoded))
	assert.Equal(t, "conversation.item.create", decoded["type"])
	assert.NotEmpty(t, decoded["event_id"])

	item, ok := decoded["item"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "message", item["type"])
	assert.Equal(t, "assistant", item["role"])

	content, ok := item["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	first, ok := content[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "text", first["type"])
	assert.Equal(t, "Your task has been created: ID 3, title pack boxes.", first["text"])
}
