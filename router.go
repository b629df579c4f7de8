package realtime

import (
	"github.com/pippin-app/realtime-go/shared"
	"go.uber.org/zap"
)

// Router classifies inbound data-channel messages, keeps the event log and
// speaking activity current, and hands qualifying function-call events to
// the dispatch callback. One router per session.
type Router struct {
	logger   shared.LoggerAdapter
	state    *SessionState
	dispatch func(event *FunctionCallDoneEvent)
}

func NewRouter(logger shared.LoggerAdapter, state *SessionState, dispatch func(event *FunctionCallDoneEvent)) *Router {
	return &Router{
		logger:   logger,
		state:    state,
		dispatch: dispatch,
	}
}

// Handle processes one inbound message. Messages are appended to the event
// log strictly in arrival order; a parse failure keeps the raw payload in
// the log and touches nothing else.
func (r *Router) Handle(data []byte) {
	event := ParseInbound(data)
	r.state.appendEvent(event)
	if raw, ok := event.(*RawEvent); ok {
		r.logger.Warn(
			"unparseable data channel message retained raw",
			zap.String("data", raw.Data),
		)
		return
	}
	switch event.EventType() {
	case EventTypeSpeechStarted:
		r.state.setActivity(ActivityUser)
	case EventTypeSpeechStopped:
		r.state.setActivity(ActivityNone)
	case EventTypeOutputAudioStarted:
		r.state.setActivity(ActivityAssistant)
	case EventTypeOutputAudioStopped:
		r.state.setActivity(ActivityNone)
	}
	if fc, ok := event.(*FunctionCallDoneEvent); ok && fc.Qualifies() {
		r.logger.Info(
			"function call detected",
			zap.String("name", fc.Name),
			zap.String("call_id", fc.CallId),
		)
		if r.dispatch != nil {
			r.dispatch(fc)
		}
	}
}
