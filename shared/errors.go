package shared

import "errors"

// Failure taxonomy for a realtime session. Setup failures (credential,
// signaling, media) are terminal for the connection attempt; the rest are
// contained to the single event or call being processed.
var (
	ErrCredential       = errors.New("credential request failed")
	ErrSignaling        = errors.New("signaling exchange failed")
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrParse            = errors.New("malformed payload")
	ErrExecution        = errors.New("function execution failed")
	ErrDelivery         = errors.New("outbound delivery failed")
)

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNoLogger              = errors.New("no logger provided")
	ErrNoBackend             = errors.New("no backend client provided")
	ErrNoSignaler            = errors.New("no signaler provided")
	ErrSessionAlreadyRunning = errors.New("session already running")
	ErrStatusHandlerSet      = errors.New("status handler already set")
	ErrActivityHandlerSet    = errors.New("activity handler already set")
	ErrEventHandlerSet       = errors.New("event handler already set")
)
