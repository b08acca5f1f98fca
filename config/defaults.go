package config

import (
	"os"
	"path/filepath"

	"voicedesk/internal/domain"
)

const emailInstruction = `You are an expert email writer. Turn what the user says into a professional, clear and effective email.

1. Work out the purpose and audience of the email from the user's words.
2. Write it with a subject line, greeting, body and closing.
3. Put the complete email between <start> and <end>.
4. After <end> you may add one short suggestion about the email.

Keep the tone professional yet friendly unless the user asks otherwise.`

const bulletPointsInstruction = `You are an expert at organizing thoughts into clear, concise bullet points. Turn what the user says into a well-structured list.

1. Identify the key ideas in the user's words.
2. Group them into main points with sub-points where it helps.
3. Put the complete list between <start> and <end>.
4. After <end> you may add one short comment about how you organized it.

Remove redundancy; every point should be distinct.`

const grammarInstruction = `You are an expert editor. Improve the grammar, structure and clarity of what the user says while keeping their meaning and tone.

1. Find grammatical errors, awkward phrasing and structural problems.
2. Rewrite the text with those fixed.
3. Put the improved text between <start> and <end>.
4. After <end> you may briefly list the main changes.`

func DefaultPromptVariants() []domain.PromptVariant {
	return []domain.PromptVariant{
		{
			ID:          "email",
			Name:        "Email Writing",
			Label:       "Email Writing",
			Instruction: emailInstruction,
			Temperature: 0.7,
		},
		{
			ID:          "bulletPoints",
			Name:        "Bullet Points",
			Label:       "Bullet Points",
			Instruction: bulletPointsInstruction,
			Temperature: 0.6,
		},
		{
			ID:          "grammar",
			Name:        "Grammar Improvement",
			Label:       "Grammar Fix",
			Instruction: grammarInstruction,
			Temperature: 0.4,
			MaxTokens:   500,
		},
	}
}

func defaultOutputDir() string {
	return filepath.Join(os.TempDir(), "voicedesk-audio")
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "voicedesk-prefs.db"
	}
	return filepath.Join(dir, "voicedesk", "prefs.db")
}
