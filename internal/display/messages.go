package display

import "voicedesk/internal/infra/presentation"

// HostEventMsg wraps an event received from the host.
type HostEventMsg struct {
	Event presentation.Event
}

// HostClosedMsg is sent when the event stream ends.
type HostClosedMsg struct{}

// SendErrorMsg is sent when a command could not be delivered.
type SendErrorMsg struct {
	Err error
}

type clearErrorMsg struct{}
