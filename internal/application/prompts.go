package application

import (
	"fmt"

	"voicedesk/internal/domain"
)

// PromptCatalog is the read-only id -> variant mapping loaded at startup.
type PromptCatalog struct {
	variants  []domain.PromptVariant
	byID      map[string]domain.PromptVariant
	defaultID string
}

func NewPromptCatalog(variants []domain.PromptVariant, defaultID string) (*PromptCatalog, error) {
	if len(variants) == 0 {
		return nil, domain.ConfigError("building prompt catalog", fmt.Errorf("no prompt variants configured"))
	}

	c := &PromptCatalog{
		variants: make([]domain.PromptVariant, len(variants)),
		byID:     make(map[string]domain.PromptVariant, len(variants)),
	}
	copy(c.variants, variants)

	for _, v := range variants {
		if v.ID == "" {
			return nil, domain.ConfigError("building prompt catalog", fmt.Errorf("prompt variant %q has no id", v.Name))
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, domain.ConfigError("building prompt catalog", fmt.Errorf("duplicate prompt variant %q", v.ID))
		}
		c.byID[v.ID] = v
	}

	if defaultID == "" {
		defaultID = variants[0].ID
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, domain.ConfigError("building prompt catalog", fmt.Errorf("%w: default %q", domain.ErrUnknownVariant, defaultID))
	}
	c.defaultID = defaultID

	return c, nil
}

func (c *PromptCatalog) Lookup(id string) (domain.PromptVariant, bool) {
	v, ok := c.byID[id]
	return v, ok
}

func (c *PromptCatalog) DefaultID() string {
	return c.defaultID
}

func (c *PromptCatalog) Variants() []domain.PromptVariant {
	out := make([]domain.PromptVariant, len(c.variants))
	copy(out, c.variants)
	return out
}
