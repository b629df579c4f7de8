package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/pippin-app/realtime-go/shared"
)

// AudioSink plays remote audio. Play blocks until the track ends or the
// session context is cancelled, so callers run it on its own goroutine.
type AudioSink interface {
	Play(track *webrtc.TrackRemote)
	Close() error
}

// AudioSinkProvider hands out the playback sink for a session. The contract
// is create-or-reuse: the first remote track creates the sink lazily, every
// later track must be rebound into the same sink rather than a new one.
type AudioSinkProvider interface {
	Sink() (AudioSink, error)
}

// Microphone provides the local audio capture for a session. Open returns
// the encoded capture track and the frame duration of its encoder.
type Microphone interface {
	Open() (mediadevices.Track, time.Duration, error)
	Close() error
}

// DeviceMicrophone captures from the default input device through
// mediadevices, encoded as opus.
type DeviceMicrophone struct {
	mu    sync.Mutex
	track mediadevices.Track
}

var _ Microphone = (*DeviceMicrophone)(nil)

func NewDeviceMicrophone() *DeviceMicrophone {
	return &DeviceMicrophone{}
}

func (m *DeviceMicrophone) Open() (mediadevices.Track, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track != nil {
		return nil, 0, fmt.Errorf("%w: microphone already open", shared.ErrMediaAcquisition)
	}
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: creating opus params: %v", shared.ErrMediaAcquisition, err)
	}
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
			c.SampleSize = prop.Int(16)
		},
		Codec: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: getting microphone stream: %v", shared.ErrMediaAcquisition, err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, 0, fmt.Errorf("%w: no audio track in microphone stream", shared.ErrMediaAcquisition)
	}
	m.track = tracks[0]
	return m.track, time.Duration(opusParams.Latency), nil
}

func (m *DeviceMicrophone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return nil
	}
	err := m.track.Close()
	m.track = nil
	return err
}
