package application

import (
	"context"

	"voicedesk/internal/domain"
)

// StreamChannel is one bidirectional transcription stream, used for a single
// session only.
type StreamChannel interface {
	// Send pushes a PCM frame. It reports false when the frame was dropped
	// because the channel is not ready or the send side is closed.
	Send(frame []byte) bool
	// CloseSend tells the provider no more audio will follow. Results for
	// audio already sent may still arrive.
	CloseSend() error
	// Events is closed once the channel has ended for any reason.
	Events() <-chan domain.RecognitionEvent
	// Err is the cause of an abnormal end, valid after Events is closed.
	Err() error
	Close() error
}

type Transcriber interface {
	Open(ctx context.Context, format domain.AudioFormat) (StreamChannel, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*domain.AudioResource, error)
}
