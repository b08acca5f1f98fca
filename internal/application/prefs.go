package application

import "context"

const PrefActivePromptVariant = "active_prompt_variant"

type PreferenceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
