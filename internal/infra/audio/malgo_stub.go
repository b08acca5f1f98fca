//go:build !malgo

package audio

import (
	"context"
	"errors"
	"log/slog"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

var errNoMalgo = errors.New("malgo backend not available: rebuild with -tags malgo")

type MalgoMicrophone struct {
	logger *slog.Logger
}

func NewMalgoMicrophone(logger *slog.Logger) *MalgoMicrophone {
	return &MalgoMicrophone{logger: logger}
}

func (m *MalgoMicrophone) Name() string {
	return "malgo"
}

func (m *MalgoMicrophone) StartCapture(_ context.Context, _ domain.AudioFormat) (application.CaptureStream, error) {
	return nil, domain.DeviceError("opening capture device", errNoMalgo)
}

type MalgoSpeaker struct {
	logger *slog.Logger
}

func NewMalgoSpeaker(logger *slog.Logger) *MalgoSpeaker {
	return &MalgoSpeaker{logger: logger}
}

func (s *MalgoSpeaker) Name() string {
	return "malgo"
}

func (s *MalgoSpeaker) Play(_ context.Context, _ *domain.AudioResource) error {
	return domain.PlaybackError("opening playback device", errNoMalgo)
}
