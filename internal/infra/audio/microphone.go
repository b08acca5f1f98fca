//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

// Microphone captures from the default PortAudio input device.
type Microphone struct {
	frameSize int
	logger    *slog.Logger
}

func NewMicrophone(frameSize int, logger *slog.Logger) *Microphone {
	if frameSize <= 0 {
		frameSize = 1024
	}
	return &Microphone{frameSize: frameSize, logger: logger}
}

func (m *Microphone) Name() string {
	return "portaudio"
}

func (m *Microphone) StartCapture(_ context.Context, format domain.AudioFormat) (application.CaptureStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, domain.DeviceError("initializing portaudio", err)
	}

	buffer := make([]int16, m.frameSize*format.Channels)
	stream, err := portaudio.OpenDefaultStream(
		format.Channels,
		0,
		float64(format.SampleRate),
		m.frameSize,
		buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, domain.DeviceError("opening input stream", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, domain.DeviceError("starting input stream", err)
	}

	ms := &micStream{
		stream: stream,
		buffer: buffer,
		logger: m.logger,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go ms.readLoop()

	m.logger.Info("microphone started", "sampleRate", format.SampleRate, "channels", format.Channels)
	return ms, nil
}

type micStream struct {
	stream *portaudio.Stream
	buffer []int16
	logger *slog.Logger

	mu       sync.Mutex
	fn       func([]byte)
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func (s *micStream) OnFrame(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *micStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = domain.DeviceError("stopping input stream", stopErr)
		}
		s.stream.Close()
		portaudio.Terminate()
	})
	return err
}

func (s *micStream) readLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			s.logger.Error("reading from input stream", "error", err)
			return
		}

		s.mu.Lock()
		fn := s.fn
		s.mu.Unlock()
		if fn != nil {
			fn(SamplesToBytes(s.buffer))
		}
	}
}

// Speaker plays PCM through the default PortAudio output device.
type Speaker struct {
	frameSize int
	logger    *slog.Logger
}

func NewSpeaker(frameSize int, logger *slog.Logger) *Speaker {
	if frameSize <= 0 {
		frameSize = 1024
	}
	return &Speaker{frameSize: frameSize, logger: logger}
}

func (s *Speaker) Name() string {
	return "portaudio"
}

func (s *Speaker) Play(ctx context.Context, res *domain.AudioResource) error {
	if err := portaudio.Initialize(); err != nil {
		return domain.PlaybackError("initializing portaudio", err)
	}
	defer portaudio.Terminate()

	channels := max(res.Format.Channels, 1)
	out := make([]int16, s.frameSize*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(res.Format.SampleRate), s.frameSize, out)
	if err != nil {
		return domain.PlaybackError("opening output stream", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return domain.PlaybackError("starting output stream", err)
	}
	defer stream.Stop()

	samples := BytesToSamples(res.Data)
	for pos := 0; pos < len(samples); pos += len(out) {
		if err := ctx.Err(); err != nil {
			return domain.PlaybackError("playing response", err)
		}
		n := copy(out, samples[pos:])
		clear(out[n:])
		if err := stream.Write(); err != nil {
			return domain.PlaybackError("writing output stream", err)
		}
	}

	s.logger.Debug("playback finished", "duration", res.Duration)
	return nil
}
