package audio

import (
	"context"
	"log/slog"
	"time"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
	"voicedesk/internal/infra"
)

// RetryingPlayer gives a failed playback one more attempt after delay.
type RetryingPlayer struct {
	next   application.AudioPlayer
	delay  time.Duration
	logger *slog.Logger
}

func NewRetryingPlayer(next application.AudioPlayer, delay time.Duration, logger *slog.Logger) *RetryingPlayer {
	return &RetryingPlayer{next: next, delay: delay, logger: logger}
}

func (p *RetryingPlayer) Name() string {
	return p.next.Name()
}

func (p *RetryingPlayer) Play(ctx context.Context, res *domain.AudioResource) error {
	attempt := 0
	err := infra.WithRetry(ctx, infra.PlaybackRetry(p.delay), func() error {
		attempt++
		err := p.next.Play(ctx, res)
		if err != nil && attempt == 1 {
			p.logger.Warn("playback failed, retrying once", "player", p.next.Name(), "delay", p.delay, "error", err)
		}
		return err
	})
	return domain.EnsureKind(domain.KindPlayback, "playing response", err)
}

// ArchivingPlayer keeps a WAV copy of every response before playing it.
// Archive failures are logged and never block playback.
type ArchivingPlayer struct {
	next   application.AudioPlayer
	dir    string
	logger *slog.Logger
}

func NewArchivingPlayer(next application.AudioPlayer, dir string, logger *slog.Logger) *ArchivingPlayer {
	return &ArchivingPlayer{next: next, dir: dir, logger: logger}
}

func (p *ArchivingPlayer) Name() string {
	return p.next.Name()
}

func (p *ArchivingPlayer) Play(ctx context.Context, res *domain.AudioResource) error {
	if path, err := saveResource(p.dir, res); err != nil {
		p.logger.Warn("archiving response audio", "error", err)
	} else {
		p.logger.Debug("response audio archived", "path", path)
	}
	return p.next.Play(ctx, res)
}
