//go:build malgo

package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

// MalgoMicrophone captures through miniaudio.
type MalgoMicrophone struct {
	logger *slog.Logger
}

func NewMalgoMicrophone(logger *slog.Logger) *MalgoMicrophone {
	return &MalgoMicrophone{logger: logger}
}

func (m *MalgoMicrophone) Name() string {
	return "malgo"
}

func (m *MalgoMicrophone) StartCapture(_ context.Context, format domain.AudioFormat) (application.CaptureStream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, domain.DeviceError("initializing audio context", err)
	}

	s := &malgoStream{ctx: mctx}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = uint32(format.Channels)
	config.SampleRate = uint32(format.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			s.mu.Lock()
			fn := s.fn
			s.mu.Unlock()
			if fn == nil || len(data) == 0 {
				return
			}
			frame := make([]byte, len(data))
			copy(frame, data)
			fn(frame)
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, domain.DeviceError("opening capture device", err)
	}
	s.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, domain.DeviceError("starting capture device", err)
	}

	m.logger.Info("malgo capture started", "sampleRate", format.SampleRate, "channels", format.Channels)
	return s, nil
}

type malgoStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu       sync.Mutex
	fn       func([]byte)
	stopOnce sync.Once
}

func (s *malgoStream) OnFrame(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *malgoStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if stopErr := s.device.Stop(); stopErr != nil {
			err = domain.DeviceError("stopping capture device", stopErr)
		}
		s.device.Uninit()
		s.ctx.Uninit()
		s.ctx.Free()
	})
	return err
}

// MalgoSpeaker plays PCM through miniaudio.
type MalgoSpeaker struct {
	logger *slog.Logger
}

func NewMalgoSpeaker(logger *slog.Logger) *MalgoSpeaker {
	return &MalgoSpeaker{logger: logger}
}

func (s *MalgoSpeaker) Name() string {
	return "malgo"
}

func (s *MalgoSpeaker) Play(ctx context.Context, res *domain.AudioResource) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return domain.PlaybackError("initializing audio context", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	channels := max(res.Format.Channels, 1)
	frameBytes := uint32(channels * 2)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(res.Format.SampleRate)

	var (
		mu       sync.Mutex
		cursor   = playbackCursor{data: res.Data}
		finished = make(chan struct{})
		once     sync.Once
	)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			mu.Lock()
			defer mu.Unlock()

			if cursor.fill(out[:frameCount*frameBytes]) {
				once.Do(func() { close(finished) })
			}
		},
	}

	dev, err := malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		return domain.PlaybackError("opening playback device", err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return domain.PlaybackError("starting playback device", err)
	}
	defer dev.Stop()

	select {
	case <-finished:
	case <-ctx.Done():
		return domain.PlaybackError("playing response", ctx.Err())
	}

	s.logger.Debug("playback finished", "duration", res.Duration)
	return nil
}
