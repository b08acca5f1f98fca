package domain

// State is the single source of truth for where a session is. Display flags
// (recording indicator, busy spinner, start/stop label) are derived from it.
type State string

const (
	StateIdle          State = "idle"
	StateRecording     State = "recording"
	StateAwaitingFinal State = "awaiting_final"
	StateGenerating    State = "generating"
	StateSynthesizing  State = "synthesizing"
	StatePlaying       State = "playing"
	StateError         State = "error"
)

func (s State) CanStart() bool { return s == StateIdle }

func (s State) CanStop() bool { return s == StateRecording }

func (s State) Recording() bool { return s == StateRecording }

// Busy reports whether a session is past recording but not yet finished.
func (s State) Busy() bool {
	switch s {
	case StateAwaitingFinal, StateGenerating, StateSynthesizing, StatePlaying:
		return true
	}
	return false
}

// Reason annotates a state change so observers can tell apart, for example,
// a session that finished normally from one that heard nothing.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonStarted        Reason = "started"
	ReasonNoSpeech       Reason = "no_speech"
	ReasonCompleted      Reason = "completed"
	ReasonNothingToSpeak Reason = "nothing_to_speak"
	ReasonFailed         Reason = "failed"
	ReasonChannelClosed  Reason = "channel_closed"
)
