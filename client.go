package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pippin-app/realtime-go/shared"
	"go.uber.org/zap"
)

// DataChannelLabel is the label negotiated for the event data channel.
const DataChannelLabel = "oai-events"

// Options wires a Client's collaborators. Logger, Backend, Signaler and
// AudioSinks are required; Microphone defaults to the system device.
type Options struct {
	Logger     shared.LoggerAdapter
	Backend    *Backend
	Signaler   Signaler
	Microphone Microphone
	AudioSinks AudioSinkProvider
}

// ConnectOptions tune a single connection attempt.
type ConnectOptions struct {
	// Voice is an optional voice preference forwarded to the credential
	// endpoint.
	Voice string
}

// Client owns one realtime session at a time: the peer connection, its
// microphone track, and the event data channel. The observable state lives
// in SessionState; a new Connect while a session is connecting or live is
// rejected with ErrSessionAlreadyRunning.
type Client struct {
	logger   shared.LoggerAdapter
	backend  *Backend
	signaler Signaler
	mic      Microphone
	sinks    AudioSinkProvider
	state    *SessionState
	executor *Executor

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	micTrack mediadevices.Track
	ctx      context.Context
	cancel   context.CancelCauseFunc
	calls    sync.WaitGroup
}

func NewClient(opts Options) (*Client, error) {
	if opts.Logger == nil {
		return nil, shared.ErrNoLogger
	}
	if opts.Backend == nil {
		return nil, shared.ErrNoBackend
	}
	if opts.Signaler == nil {
		return nil, shared.ErrNoSignaler
	}
	if opts.AudioSinks == nil {
		return nil, errors.New("no audio sink provider given")
	}
	if opts.Microphone == nil {
		opts.Microphone = NewDeviceMicrophone()
	}
	c := &Client{
		logger:   opts.Logger,
		backend:  opts.Backend,
		signaler: opts.Signaler,
		mic:      opts.Microphone,
		sinks:    opts.AudioSinks,
		state:    NewSessionState(),
	}
	c.executor = NewExecutor(opts.Logger, opts.Backend, c)
	return c, nil
}

// State exposes the reactive session state for observation.
func (c *Client) State() *SessionState { return c.state }

// Executor exposes the function call executor, e.g. to register summary
// templates before connecting.
func (c *Client) Executor() *Executor { return c.executor }

// Done is closed when the current session ends. Before any Connect it is
// already closed.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.ctx.Done()
}

// Connect establishes a session: credential fetch, microphone acquisition,
// peer connection with the data channel created before the offer, then the
// offer/answer exchange. Any failure tears down what was built, moves the
// status to error, and is returned wrapped in its taxonomy sentinel.
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.Status() {
	case StatusConnecting, StatusLive:
		return shared.ErrSessionAlreadyRunning
	}
	c.state.setStatus(StatusConnecting)

	cred, err := c.backend.CreateRealtimeSession(ctx, opts.Voice)
	if err != nil {
		return c.fail(err)
	}
	c.logger.Info("session credential obtained")

	micTrack, frameDuration, err := c.mic.Open()
	if err != nil {
		return c.fail(err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		_ = c.mic.Close()
		return c.fail(fmt.Errorf("creating peer connection: %w", err))
	}

	sctx, cancel := context.WithCancelCause(ctx)

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		sink, err := c.sinks.Sink()
		if err != nil {
			c.logger.Error("obtaining audio sink", err)
			return
		}
		go sink.Play(track)
	})

	// The channel must be part of the initial offer, so it is created
	// before CreateOffer.
	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		c.teardown(pc, cancel, errors.New("data channel setup failed"))
		return c.fail(fmt.Errorf("creating data channel: %w", err))
	}
	router := NewRouter(c.logger, c.state, c.dispatchFunctionCall)
	dc.OnOpen(func() {
		c.logger.Info("data channel opened", zap.String("label", dc.Label()))
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			c.logger.Warn("received non-string message on data channel")
			return
		}
		router.Handle(msg.Data)
	})

	localTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		"audio",
		"mic",
	)
	if err != nil {
		c.teardown(pc, cancel, errors.New("local track setup failed"))
		return c.fail(fmt.Errorf("creating local audio track: %w", err))
	}
	if _, err := pc.AddTrack(localTrack); err != nil {
		c.teardown(pc, cancel, errors.New("local track setup failed"))
		return c.fail(fmt.Errorf("adding local audio track: %w", err))
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("peer connection state changed", zap.String("state", state.String()))
		switch state {
		case webrtc.PeerConnectionStateConnected:
			go c.streamMicrophone(sctx, localTrack, micTrack, frameDuration)
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed:
			cancel(fmt.Errorf("peer connection state is %s", state))
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		c.teardown(pc, cancel, errors.New("offer failed"))
		return c.fail(fmt.Errorf("%w: creating offer: %v", shared.ErrSignaling, err))
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		c.teardown(pc, cancel, errors.New("offer failed"))
		return c.fail(fmt.Errorf("%w: setting local description: %v", shared.ErrSignaling, err))
	}
	answer, err := c.signaler.Exchange(ctx, cred.Token, offer.SDP)
	if err != nil {
		c.teardown(pc, cancel, errors.New("signaling failed"))
		return c.fail(err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		c.teardown(pc, cancel, errors.New("answer rejected"))
		return c.fail(fmt.Errorf("%w: setting remote description: %v", shared.ErrSignaling, err))
	}

	c.pc = pc
	c.dc = dc
	c.micTrack = micTrack
	c.ctx = sctx
	c.cancel = cancel
	c.state.setStatus(StatusLive)
	c.logger.Info("session live")
	return nil
}

// Disconnect tears the session down and returns the status to idle. With no
// active connection it is a no-op; after a failed Connect it clears the
// error status so a fresh Connect may proceed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		if c.state.Status() == StatusError {
			c.state.setStatus(StatusIdle)
		}
		return nil
	}
	c.cancel(errors.New("session disconnected"))
	if err := c.pc.Close(); err != nil {
		c.logger.Error("closing peer connection", err)
	}
	if err := c.mic.Close(); err != nil {
		c.logger.Error("closing microphone", err)
	}
	c.pc = nil
	c.dc = nil
	c.micTrack = nil
	c.cancel = nil
	c.state.setStatus(StatusIdle)
	c.logger.Info("session disconnected")
	return nil
}

// SendEvent delivers a client event over the data channel. Sends on a
// session that has ended come back as ErrDelivery; in-flight function calls
// rely on this guard, so late completions are fenced rather than
// interrupted.
func (c *Client) SendEvent(event ClientEvent) error {
	c.mu.Lock()
	dc := c.dc
	ctx := c.ctx
	c.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("%w: data channel is not open", shared.ErrDelivery)
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: session ended: %v", shared.ErrDelivery, context.Cause(ctx))
		default:
		}
	}
	payload, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: marshaling event: %v", shared.ErrDelivery, err)
	}
	if err := dc.Send(payload); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDelivery, err)
	}
	return nil
}

// dispatchFunctionCall runs one detected call on its own goroutine. Each
// call is independent; completion order is not tied to arrival order.
func (c *Client) dispatchFunctionCall(event *FunctionCallDoneEvent) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	c.calls.Add(1)
	go func() {
		defer c.calls.Done()
		c.executor.Execute(ctx, event)
	}()
}

func (c *Client) streamMicrophone(ctx context.Context, track *webrtc.TrackLocalStaticSample, micTrack mediadevices.Track, frameDuration time.Duration) {
	reader, err := micTrack.NewEncodedReader(track.Codec().MimeType)
	if err != nil {
		c.logger.Error("creating microphone reader", err)
		return
	}
	c.logger.Info("streaming microphone audio")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		buf, release, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				release()
				return
			}
			c.logger.Error("reading from microphone track", err)
			release()
			continue
		}
		if buf.Samples == 0 {
			release()
			continue
		}
		err = track.WriteSample(media.Sample{
			Data:     buf.Data[:],
			Duration: frameDuration,
		})
		release()
		if err != nil {
			c.logger.Error("writing sample to local track", err)
			continue
		}
	}
}

// fail moves the session to the error status. The causal error is logged
// and returned; the reactive contract itself only exposes the status.
func (c *Client) fail(err error) error {
	c.logger.Error("connection attempt failed", err)
	c.state.setStatus(StatusError)
	return err
}

// teardown closes a partially built peer connection during a failed
// Connect, before any of it was published on the Client.
func (c *Client) teardown(pc *webrtc.PeerConnection, cancel context.CancelCauseFunc, cause error) {
	cancel(cause)
	if err := pc.Close(); err != nil {
		c.logger.Error("closing partially built peer connection", err)
	}
	if err := c.mic.Close(); err != nil {
		c.logger.Error("closing microphone", err)
	}
}
