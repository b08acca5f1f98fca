package application

import (
	"time"

	"voicedesk/internal/domain"
)

// EventSink receives everything the display surface needs. Implementations
// must not block: they are called from the orchestrator's event loop.
type EventSink interface {
	StateChanged(session domain.Session, reason domain.Reason)
	TranscriptUpdated(sessionID, text string)
	ResponseReady(sessionID string, env domain.ResponseEnvelope)
	AudioReady(sessionID string, res *domain.AudioResource)
	ErrorOccurred(sessionID string, err error)
	ConfigUpdated(cfg domain.PromptConfig)
}

type NoopSink struct{}

func (NoopSink) StateChanged(domain.Session, domain.Reason)    {}
func (NoopSink) TranscriptUpdated(string, string)              {}
func (NoopSink) ResponseReady(string, domain.ResponseEnvelope) {}
func (NoopSink) AudioReady(string, *domain.AudioResource)      {}
func (NoopSink) ErrorOccurred(string, error)                   {}
func (NoopSink) ConfigUpdated(domain.PromptConfig)             {}

// MultiSink fans every event out to each sink in order.
type MultiSink []EventSink

func (m MultiSink) StateChanged(s domain.Session, r domain.Reason) {
	for _, sink := range m {
		sink.StateChanged(s, r)
	}
}

func (m MultiSink) TranscriptUpdated(id, text string) {
	for _, sink := range m {
		sink.TranscriptUpdated(id, text)
	}
}

func (m MultiSink) ResponseReady(id string, env domain.ResponseEnvelope) {
	for _, sink := range m {
		sink.ResponseReady(id, env)
	}
}

func (m MultiSink) AudioReady(id string, res *domain.AudioResource) {
	for _, sink := range m {
		sink.AudioReady(id, res)
	}
}

func (m MultiSink) ErrorOccurred(id string, err error) {
	for _, sink := range m {
		sink.ErrorOccurred(id, err)
	}
}

func (m MultiSink) ConfigUpdated(cfg domain.PromptConfig) {
	for _, sink := range m {
		sink.ConfigUpdated(cfg)
	}
}

type Metrics interface {
	ObserveStage(stage domain.State, d time.Duration)
	SessionFinished(reason domain.Reason, kind domain.ErrorKind)
}

type NoopMetrics struct{}

func (NoopMetrics) ObserveStage(domain.State, time.Duration)        {}
func (NoopMetrics) SessionFinished(domain.Reason, domain.ErrorKind) {}
