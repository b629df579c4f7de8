package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pippin-app/realtime-go/shared"
	"go.uber.org/zap"
)

// FunctionCaller executes a function call against the application backend.
type FunctionCaller interface {
	ExecuteFunctionCall(ctx context.Context, name string, args map[string]any) (*FunctionCallResult, error)
}

// EventSender delivers a client event over the session's data channel. The
// implementation must guard against a channel that has closed mid-flight.
type EventSender interface {
	SendEvent(event ClientEvent) error
}

// SummaryFunc renders a human-readable summary of a successful function call
// from the normalized arguments and the backend result. Returning false
// produces no conversation message.
type SummaryFunc func(args, result map[string]any) (string, bool)

// Executor runs detected function calls out of band: normalize arguments,
// dispatch to the backend, and on success inject a summary message back into
// the conversation. Every failure is contained to the single call.
type Executor struct {
	logger shared.LoggerAdapter
	caller FunctionCaller
	sender EventSender

	mu        sync.Mutex
	summaries map[string]SummaryFunc
}

func NewExecutor(logger shared.LoggerAdapter, caller FunctionCaller, sender EventSender) *Executor {
	e := &Executor{
		logger:    logger,
		caller:    caller,
		sender:    sender,
		summaries: make(map[string]SummaryFunc),
	}
	e.RegisterSummary("create_move", summarizeCreateMove)
	e.RegisterSummary("create_task", summarizeCreateTask)
	e.RegisterSummary("external_api_call", summarizeExternalAPICall)
	return e
}

// RegisterSummary maps a function name to its summary template, replacing
// any previous registration for that name.
func (e *Executor) RegisterSummary(name string, fn SummaryFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries[name] = fn
}

func (e *Executor) summary(name string) (SummaryFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.summaries[name]
	return fn, ok
}

// Execute runs one function call end to end. Errors never propagate to the
// session: argument parse failures, backend failures, and delivery failures
// are logged and abort this call only.
func (e *Executor) Execute(ctx context.Context, event *FunctionCallDoneEvent) {
	req, err := event.Request()
	if err != nil {
		e.logger.Error("normalizing function call arguments", err, zap.String("name", event.Name))
		return
	}
	result, err := e.caller.ExecuteFunctionCall(ctx, req.Name, req.Arguments)
	if err != nil {
		e.logger.Error("executing function call", err, zap.String("name", req.Name))
		return
	}
	e.logger.Info(
		"function call executed",
		zap.String("name", req.Name),
		zap.String("status", result.Status),
	)
	if !result.OK() {
		return
	}
	fn, ok := e.summary(req.Name)
	if !ok {
		e.logger.Debug("no summary template for function", zap.String("name", req.Name))
		return
	}
	text, ok := fn(req.Arguments, result.Result)
	if !ok {
		return
	}
	if err := e.sender.SendEvent(NewConversationMessage(text)); err != nil {
		// The session may have ended while the call was in flight. Not a
		// session error.
		e.logger.Warn(
			"dropping conversation summary",
			zap.String("name", req.Name),
			zap.Error(err),
		)
	}
}

func summarizeCreateMove(_, result map[string]any) (string, bool) {
	id, okId := result["id"]
	origin, okOrigin := result["origin_country"]
	destination, okDestination := result["destination_country"]
	start, okStart := result["start_date"]
	if !okId || !okOrigin || !okDestination || !okStart {
		return "", false
	}
	return fmt.Sprintf(
		"Your move has been created: ID %v, from %v to %v, start date %v.",
		id, origin, destination, start,
	), true
}

func summarizeCreateTask(_, result map[string]any) (string, bool) {
	id, okId := result["id"]
	title, okTitle := result["title"]
	if !okId || !okTitle {
		return "", false
	}
	return fmt.Sprintf("Your task has been created: ID %v, title %v.", id, title), true
}

func summarizeExternalAPICall(args, result map[string]any) (string, bool) {
	statusCode, okStatus := result["status_code"]
	body, okBody := result["body"]
	if !okStatus || !okBody {
		return "", false
	}
	encoded, err := sonic.MarshalString(body)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf(
		"External API %v %v returned status %v. Response: %s",
		args["method"], args["endpoint"], statusCode, encoded,
	), true
}
