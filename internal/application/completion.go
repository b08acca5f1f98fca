package application

import (
	"context"

	"voicedesk/internal/domain"
)

type Completer interface {
	Complete(ctx context.Context, transcript string, variant domain.PromptVariant) (string, error)
}
