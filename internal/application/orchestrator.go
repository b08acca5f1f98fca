package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicedesk/internal/domain"
)

const DefaultFinalWait = 1000 * time.Millisecond

type OrchestratorConfig struct {
	FinalWait time.Duration
	Markers   domain.Markers
	Format    domain.AudioFormat
}

type Dependencies struct {
	Capture     AudioCapture
	Transcriber Transcriber
	Completer   Completer
	Synthesizer Synthesizer
	Player      AudioPlayer
	Prompts     *PromptCatalog
	Prefs       PreferenceStore
	Sink        EventSink
	Metrics     Metrics
}

// Orchestrator owns the session state machine. All state is mutated on the
// goroutine running Run; everything else talks to it through the inbox.
type Orchestrator struct {
	deps   Dependencies
	cfg    OrchestratorConfig
	logger *slog.Logger
	newID  func() string

	inbox chan any
	done  chan struct{}

	session *session
	active  string

	mu    sync.RWMutex
	state domain.State
}

type session struct {
	domain.Session
	ctx         context.Context
	cancel      context.CancelFunc
	transcript  TranscriptAccumulator
	capture     CaptureStream
	channel     StreamChannel
	channelDone bool
	waitTimer   *time.Timer
	stageStart  time.Time
}

type (
	startCmd         struct{}
	stopCmd          struct{}
	selectVariantCmd struct{ id string }
	configCmd        struct{}

	recognitionMsg struct {
		sessionID string
		event     domain.RecognitionEvent
	}
	channelClosedMsg struct {
		sessionID string
		err       error
	}
	finalWaitMsg struct{ sessionID string }
	completionMsg struct {
		sessionID string
		text      string
		err       error
	}
	synthesisMsg struct {
		sessionID string
		res       *domain.AudioResource
		err       error
	}
	playbackMsg struct {
		sessionID string
		err       error
	}
)

func NewOrchestrator(deps Dependencies, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if deps.Sink == nil {
		deps.Sink = NoopSink{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NoopMetrics{}
	}
	if cfg.FinalWait <= 0 {
		cfg.FinalWait = DefaultFinalWait
	}
	if cfg.Format.SampleRate == 0 {
		cfg.Format = domain.CaptureFormat()
	}

	o := &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
		inbox:  make(chan any, 64),
		done:   make(chan struct{}),
		state:  domain.StateIdle,
	}
	if deps.Prompts != nil {
		o.active = deps.Prompts.DefaultID()
	}
	return o
}

func (o *Orchestrator) Start()                        { o.post(startCmd{}) }
func (o *Orchestrator) Stop()                         { o.post(stopCmd{}) }
func (o *Orchestrator) SelectPromptVariant(id string) { o.post(selectVariantCmd{id: id}) }
func (o *Orchestrator) RequestConfig()                { o.post(configCmd{}) }

// State returns the state as of the last completed transition.
func (o *Orchestrator) State() domain.State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Orchestrator) post(msg any) {
	select {
	case o.inbox <- msg:
	case <-o.done:
	}
}

func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	o.restoreActiveVariant(ctx)
	o.deps.Sink.ConfigUpdated(o.promptConfig())
	o.logger.Info("orchestrator ready", "prompt_variant", o.active)

	for {
		select {
		case <-ctx.Done():
			if s := o.session; s != nil {
				o.logger.Info("shutting down active session", "session", s.ID, "state", s.State)
				o.release(s)
				o.session = nil
			}
			return ctx.Err()
		case msg := <-o.inbox:
			o.handle(ctx, msg)
		}
	}
}

func (o *Orchestrator) handle(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case startCmd:
		o.start(ctx)
	case stopCmd:
		o.stop(domain.ReasonNone)
	case selectVariantCmd:
		o.selectVariant(ctx, m.id)
	case configCmd:
		o.deps.Sink.ConfigUpdated(o.promptConfig())
	case recognitionMsg:
		o.onRecognition(m)
	case channelClosedMsg:
		o.onChannelClosed(m)
	case finalWaitMsg:
		if s := o.current(m.sessionID); s != nil && s.State == domain.StateAwaitingFinal {
			o.logger.Debug("final transcript wait elapsed", "session", s.ID)
			o.finishListening(s)
		}
	case completionMsg:
		o.onCompletion(m)
	case synthesisMsg:
		o.onSynthesis(m)
	case playbackMsg:
		o.onPlayback(m)
	default:
		o.logger.Warn("unknown orchestrator message", "type", fmt.Sprintf("%T", msg))
	}
}

func (o *Orchestrator) current(id string) *session {
	if o.session == nil || o.session.ID != id {
		return nil
	}
	return o.session
}

func (o *Orchestrator) start(ctx context.Context) {
	if o.session != nil {
		o.logger.Debug("start ignored", "state", o.session.State)
		return
	}

	variant, _ := o.deps.Prompts.Lookup(o.active)
	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		Session: domain.Session{
			ID:        o.newID(),
			State:     domain.StateIdle,
			Variant:   variant,
			StartedAt: time.Now(),
		},
		ctx:    sctx,
		cancel: cancel,
	}
	o.session = s

	stream, err := o.deps.Capture.StartCapture(sctx, o.cfg.Format)
	if err != nil {
		o.fail(s, domain.EnsureKind(domain.KindDevice, "starting capture", err))
		return
	}
	s.capture = stream

	ch, err := o.deps.Transcriber.Open(sctx, o.cfg.Format)
	if err != nil {
		o.fail(s, domain.EnsureKind(domain.KindChannel, "opening transcription stream", err))
		return
	}
	s.channel = ch

	stream.OnFrame(func(frame []byte) { ch.Send(frame) })
	go o.listen(s.ID, ch)

	o.setState(s, domain.StateRecording, domain.ReasonStarted)
	o.deps.Sink.TranscriptUpdated(s.ID, "")
}

func (o *Orchestrator) listen(sessionID string, ch StreamChannel) {
	for ev := range ch.Events() {
		o.post(recognitionMsg{sessionID: sessionID, event: ev})
	}
	o.post(channelClosedMsg{sessionID: sessionID, err: ch.Err()})
}

func (o *Orchestrator) stop(reason domain.Reason) {
	s := o.session
	if s == nil || !s.State.CanStop() {
		o.logger.Debug("stop ignored", "state", o.State())
		return
	}

	o.stopCapture(s)
	if !s.channelDone {
		if err := s.channel.CloseSend(); err != nil {
			o.logger.Warn("closing send side of stream", "session", s.ID, "error", err)
		}
	}
	o.setState(s, domain.StateAwaitingFinal, reason)

	if s.transcript.FinalReceived() || s.channelDone {
		o.finishListening(s)
		return
	}

	id := s.ID
	s.waitTimer = time.AfterFunc(o.cfg.FinalWait, func() {
		o.post(finalWaitMsg{sessionID: id})
	})
}

func (o *Orchestrator) onRecognition(m recognitionMsg) {
	s := o.current(m.sessionID)
	if s == nil || (s.State != domain.StateRecording && s.State != domain.StateAwaitingFinal) {
		return
	}

	if s.transcript.Apply(m.event) {
		o.deps.Sink.TranscriptUpdated(s.ID, s.transcript.Display())
	}

	if m.event.IsFinal && s.State == domain.StateAwaitingFinal && s.transcript.FinalReceived() {
		o.finishListening(s)
	}
}

func (o *Orchestrator) onChannelClosed(m channelClosedMsg) {
	s := o.current(m.sessionID)
	if s == nil {
		return
	}
	s.channelDone = true

	switch s.State {
	case domain.StateRecording:
		if m.err != nil && s.transcript.Canonical() == "" {
			o.fail(s, domain.ChannelError("streaming transcription", m.err))
			return
		}
		o.logger.Info("stream closed while recording", "session", s.ID, "error", m.err)
		o.stop(domain.ReasonChannelClosed)
	case domain.StateAwaitingFinal:
		o.finishListening(s)
	}
}

// finishListening leaves AwaitingFinal, either for Generating or, when
// nothing was recognized, straight back to Idle.
func (o *Orchestrator) finishListening(s *session) {
	if s.waitTimer != nil {
		s.waitTimer.Stop()
		s.waitTimer = nil
	}
	o.closeChannel(s)

	text := s.transcript.Canonical()
	if text == "" {
		o.logger.Info("no speech detected", "session", s.ID)
		o.finish(s, domain.ReasonNoSpeech)
		return
	}

	o.setState(s, domain.StateGenerating, domain.ReasonNone)

	id, ctx, variant := s.ID, s.ctx, s.Variant
	go func() {
		out, err := o.deps.Completer.Complete(ctx, text, variant)
		o.post(completionMsg{sessionID: id, text: out, err: err})
	}()
}

func (o *Orchestrator) onCompletion(m completionMsg) {
	s := o.current(m.sessionID)
	if s == nil || s.State != domain.StateGenerating {
		return
	}
	if m.err != nil {
		o.fail(s, domain.EnsureKind(domain.KindCompletion, "generating response", m.err))
		return
	}

	env := domain.NewResponseEnvelope(m.text, o.cfg.Markers)
	o.deps.Sink.ResponseReady(s.ID, env)

	if env.SpokenPortion == "" {
		o.finish(s, domain.ReasonNothingToSpeak)
		return
	}

	o.setState(s, domain.StateSynthesizing, domain.ReasonNone)

	id, ctx, text := s.ID, s.ctx, env.SpokenPortion
	go func() {
		res, err := o.deps.Synthesizer.Synthesize(ctx, text)
		o.post(synthesisMsg{sessionID: id, res: res, err: err})
	}()
}

func (o *Orchestrator) onSynthesis(m synthesisMsg) {
	s := o.current(m.sessionID)
	if s == nil || s.State != domain.StateSynthesizing {
		return
	}
	if m.err == nil && m.res == nil {
		m.err = domain.ErrEmptyResponse
	}
	if m.err != nil {
		o.fail(s, domain.EnsureKind(domain.KindSynthesis, "synthesizing speech", m.err))
		return
	}

	o.deps.Sink.AudioReady(s.ID, m.res)
	o.setState(s, domain.StatePlaying, domain.ReasonNone)

	id, ctx, res := s.ID, s.ctx, m.res
	go func() {
		err := o.deps.Player.Play(ctx, res)
		o.post(playbackMsg{sessionID: id, err: err})
	}()
}

func (o *Orchestrator) onPlayback(m playbackMsg) {
	s := o.current(m.sessionID)
	if s == nil || s.State != domain.StatePlaying {
		return
	}
	if m.err != nil {
		o.fail(s, domain.EnsureKind(domain.KindPlayback, "playing response", m.err))
		return
	}
	o.finish(s, domain.ReasonCompleted)
}

func (o *Orchestrator) finish(s *session, reason domain.Reason) {
	o.release(s)
	o.setState(s, domain.StateIdle, reason)
	o.deps.Metrics.SessionFinished(reason, "")
	o.session = nil
}

// fail reports err once and returns to Idle. Microphone and channel are
// released before the Idle transition is published.
func (o *Orchestrator) fail(s *session, err error) {
	kind := domain.KindOf(err)
	o.logger.Error("session failed", "session", s.ID, "state", s.State, "kind", kind, "error", err)

	o.setState(s, domain.StateError, domain.ReasonFailed)
	o.deps.Sink.ErrorOccurred(s.ID, err)
	o.release(s)
	o.setState(s, domain.StateIdle, domain.ReasonFailed)
	o.deps.Metrics.SessionFinished(domain.ReasonFailed, kind)
	o.session = nil
}

func (o *Orchestrator) release(s *session) {
	if s.waitTimer != nil {
		s.waitTimer.Stop()
		s.waitTimer = nil
	}
	o.stopCapture(s)
	o.closeChannel(s)
	s.cancel()
}

func (o *Orchestrator) stopCapture(s *session) {
	if s.capture == nil {
		return
	}
	if err := s.capture.Stop(); err != nil {
		o.logger.Warn("stopping capture", "session", s.ID, "error", err)
	}
	s.capture = nil
}

func (o *Orchestrator) closeChannel(s *session) {
	if s.channel == nil {
		return
	}
	if err := s.channel.Close(); err != nil {
		o.logger.Warn("closing stream", "session", s.ID, "error", err)
	}
	s.channel = nil
}

func (o *Orchestrator) setState(s *session, state domain.State, reason domain.Reason) {
	now := time.Now()
	prev := s.State
	if prev.Recording() || prev.Busy() {
		o.deps.Metrics.ObserveStage(prev, now.Sub(s.stageStart))
	}
	s.State = state
	s.stageStart = now

	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.logger.Info("session state changed", "session", s.ID, "from", prev, "to", state, "reason", reason)
	o.deps.Sink.StateChanged(s.Session, reason)
}

func (o *Orchestrator) selectVariant(ctx context.Context, id string) {
	if _, ok := o.deps.Prompts.Lookup(id); !ok {
		err := domain.ConfigError("selecting prompt variant", fmt.Errorf("%w: %q", domain.ErrUnknownVariant, id))
		o.logger.Warn("invalid prompt variant", "id", id)
		o.deps.Sink.ErrorOccurred("", err)
		return
	}

	o.active = id
	o.logger.Info("prompt variant selected", "id", id)

	if o.deps.Prefs != nil {
		if err := o.deps.Prefs.Set(ctx, PrefActivePromptVariant, id); err != nil {
			o.logger.Warn("saving prompt variant preference", "error", err)
		}
	}
	o.deps.Sink.ConfigUpdated(o.promptConfig())
}

func (o *Orchestrator) restoreActiveVariant(ctx context.Context) {
	if o.deps.Prefs == nil {
		return
	}
	id, ok, err := o.deps.Prefs.Get(ctx, PrefActivePromptVariant)
	if err != nil {
		o.logger.Warn("loading prompt variant preference", "error", err)
		return
	}
	if !ok {
		return
	}
	if _, known := o.deps.Prompts.Lookup(id); !known {
		o.logger.Warn("stored prompt variant no longer configured", "id", id)
		return
	}
	o.active = id
}

func (o *Orchestrator) promptConfig() domain.PromptConfig {
	return domain.PromptConfig{
		Variants: o.deps.Prompts.Variants(),
		Active:   o.active,
	}
}

