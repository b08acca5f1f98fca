package application

import (
	"context"

	"voicedesk/internal/domain"
)

// CaptureStream is a running microphone capture. Frames are delivered to the
// callback registered with OnFrame; frames produced before a callback is set
// are dropped. Stop is idempotent.
type CaptureStream interface {
	OnFrame(fn func(frame []byte))
	Stop() error
}

type AudioCapture interface {
	StartCapture(ctx context.Context, format domain.AudioFormat) (CaptureStream, error)
	Name() string
}

type AudioPlayer interface {
	Play(ctx context.Context, res *domain.AudioResource) error
	Name() string
}
