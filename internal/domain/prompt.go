package domain

type PromptVariant struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Label       string  `yaml:"label" json:"label"`
	Instruction string  `yaml:"instruction" json:"-"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
}

// PromptConfig is what the display needs to render the variant picker.
type PromptConfig struct {
	Variants []PromptVariant `json:"variants"`
	Active   string          `json:"active"`
}
