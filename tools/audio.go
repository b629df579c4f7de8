package tools

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pion/webrtc/v4"
	pkg "github.com/pippin-app/realtime-go"
	"github.com/pippin-app/realtime-go/shared"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"
)

// PlaybackBuffer is a bounded PCM byte buffer between the RTP decode loop
// and the audio device. When full, the oldest bytes are dropped.
type PlaybackBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buffer []byte
	cap    int
}

func NewPlaybackBuffer(fixedCap int) *PlaybackBuffer {
	pb := &PlaybackBuffer{
		buffer: make([]byte, 0, fixedCap),
		cap:    fixedCap,
	}
	pb.cond = sync.NewCond(&pb.mu)
	return pb
}

func (pb *PlaybackBuffer) Write(data []byte) (dropped int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if len(pb.buffer)+len(data) > pb.cap {
		dropped = len(pb.buffer) + len(data) - pb.cap
		pb.buffer = pb.buffer[dropped:]
	}
	pb.buffer = append(pb.buffer, data...)
	pb.cond.Signal()
	return dropped
}

func (pb *PlaybackBuffer) Read(p []byte) (n int, err error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	for len(pb.buffer) == 0 {
		pb.cond.Wait()
	}
	n = copy(p, pb.buffer)
	pb.buffer = pb.buffer[n:]
	return n, nil
}

// SpeakerProvider plays remote audio on the default output device. The sink
// is created lazily from the first track's codec parameters and reused for
// every subsequent track, which only rebinds its decode loop onto the same
// player.
type SpeakerProvider struct {
	ctx               context.Context
	logger            shared.LoggerAdapter
	otoBufferMs       int
	ringBufferSeconds int

	mu   sync.Mutex
	sink *speakerSink
}

var _ pkg.AudioSinkProvider = (*SpeakerProvider)(nil)

func NewSpeakerProvider(ctx context.Context, logger shared.LoggerAdapter, otoBufferMs, ringBufferSeconds int) *SpeakerProvider {
	return &SpeakerProvider{
		ctx:               ctx,
		logger:            logger,
		otoBufferMs:       otoBufferMs,
		ringBufferSeconds: ringBufferSeconds,
	}
}

func (p *SpeakerProvider) Sink() (pkg.AudioSink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		p.sink = &speakerSink{
			ctx:               p.ctx,
			logger:            p.logger,
			otoBufferMs:       p.otoBufferMs,
			ringBufferSeconds: p.ringBufferSeconds,
		}
	}
	return p.sink, nil
}

type speakerSink struct {
	ctx               context.Context
	logger            shared.LoggerAdapter
	otoBufferMs       int
	ringBufferSeconds int

	mu     sync.Mutex
	buffer *PlaybackBuffer
	player *oto.Player
}

// Play decodes the track's opus RTP into the shared playback buffer. The
// device player is created once; later tracks feed the same buffer.
func (s *speakerSink) Play(track *webrtc.TrackRemote) {
	var (
		codec      = track.Codec()
		sampleRate = int(codec.ClockRate)
		channels   = int(codec.Channels)
	)
	s.logger.Info("playing remote audio",
		zap.String("codec", codec.MimeType),
		zap.Int("sampleRate", sampleRate),
		zap.Int("channels", channels),
	)
	decoder, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		s.logger.Error("creating opus decoder", err)
		return
	}
	if err := s.ensurePlayer(sampleRate, channels); err != nil {
		s.logger.Error("creating audio player", err)
		return
	}

	pcm := make([]int16, FrameSamples(time.Duration(s.otoBufferMs)*time.Millisecond, sampleRate, channels))
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		rtp, _, err := track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				s.logger.Error("reading RTP packet", err)
			}
			return
		}
		if len(rtp.Payload) == 0 {
			continue
		}
		n, err := decoder.Decode(rtp.Payload, pcm)
		if err != nil {
			s.logger.Error("decoding opus payload", err)
			continue
		}
		pcmSlice := pcm[:n*channels]
		pcmBytes := make([]byte, len(pcmSlice)*2)
		for i := range pcmSlice {
			binary.LittleEndian.PutUint16(pcmBytes[i*2:], uint16(pcmSlice[i]))
		}
		if dropped := s.buffer.Write(pcmBytes); dropped > 0 {
			s.logger.Warn("playback buffer dropped data", zap.Int("droppedBytes", dropped))
		}
	}
}

func (s *speakerSink) ensurePlayer(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return nil
	}
	otoCtx, ready, err := oto.NewContext(
		&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(s.otoBufferMs) * time.Millisecond,
		},
	)
	if err != nil {
		return err
	}
	s.buffer = NewPlaybackBuffer(s.ringBufferSeconds * sampleRate * channels * 2)
	<-ready
	s.player = otoCtx.NewPlayer(s.buffer)
	s.player.Play()
	return nil
}

func (s *speakerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}
