package presentation

import (
	"time"

	"voicedesk/internal/domain"
)

type CommandType string

const (
	CommandStart         CommandType = "start"
	CommandStop          CommandType = "stop"
	CommandSelectVariant CommandType = "select_variant"
	CommandRequestConfig CommandType = "request_config"
)

// Command is what the display sends to the host.
type Command struct {
	Type    CommandType `json:"type"`
	Variant string      `json:"variant,omitempty"`
}

type EventType string

const (
	EventState      EventType = "state"
	EventTranscript EventType = "transcript"
	EventResponse   EventType = "response"
	EventAudio      EventType = "audio"
	EventError      EventType = "error"
	EventConfig     EventType = "config"

	// EventConnection is produced locally by Client when the link to the
	// host comes up ("connected") or drops ("disconnected").
	EventConnection EventType = "connection"
)

// Event is what the host broadcasts to every display. Only the fields that
// belong to Type are set.
type Event struct {
	Type     EventType                `json:"type"`
	Session  string                   `json:"session,omitempty"`
	State    domain.State             `json:"state,omitempty"`
	Reason   domain.Reason            `json:"reason,omitempty"`
	Variant  string                   `json:"variant,omitempty"`
	Text     string                   `json:"text,omitempty"`
	Response *domain.ResponseEnvelope `json:"response,omitempty"`
	Audio    *domain.AudioResource    `json:"audio,omitempty"`
	Error    *ErrorInfo               `json:"error,omitempty"`
	Config   *domain.PromptConfig     `json:"config,omitempty"`
	Time     time.Time                `json:"time"`
}

type ErrorInfo struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}
