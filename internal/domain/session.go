package domain

import "time"

type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Variant   PromptVariant `json:"variant"`
	StartedAt time.Time     `json:"started_at"`
}

// RecognitionEvent is one transcription result from the streaming channel.
// Non-final events may be revised by later events; final events are not.
type RecognitionEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}
