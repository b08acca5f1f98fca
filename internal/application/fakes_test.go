package application_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

type fakeStream struct {
	mu      sync.Mutex
	fn      func([]byte)
	stopped int
}

func (s *fakeStream) OnFrame(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeStream) emit(frame []byte) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

func (s *fakeStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped > 0
}

type fakeCapture struct {
	mu     sync.Mutex
	err    error
	starts int
	stream *fakeStream
}

func (c *fakeCapture) Name() string { return "fake" }

func (c *fakeCapture) StartCapture(_ context.Context, _ domain.AudioFormat) (application.CaptureStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.err != nil {
		return nil, c.err
	}
	c.stream = &fakeStream{}
	return c.stream, nil
}

func (c *fakeCapture) lastStream() *fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

func (c *fakeCapture) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

type fakeChannel struct {
	mu        sync.Mutex
	events    chan domain.RecognitionEvent
	sent      int
	closeSend int
	closed    int
	err       error
	once      sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan domain.RecognitionEvent, 32)}
}

func (c *fakeChannel) Send(_ []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	return true
}

func (c *fakeChannel) CloseSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSend++
	return nil
}

func (c *fakeChannel) Events() <-chan domain.RecognitionEvent { return c.events }

func (c *fakeChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.end(nil)
	return nil
}

func (c *fakeChannel) end(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.events)
	})
}

func (c *fakeChannel) emit(text string, final bool) {
	c.events <- domain.RecognitionEvent{Text: text, IsFinal: final}
}

func (c *fakeChannel) counts() (sent, closeSend, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent, c.closeSend, c.closed
}

type fakeTranscriber struct {
	mu      sync.Mutex
	err     error
	opens   int
	channel *fakeChannel
}

func (f *fakeTranscriber) Open(_ context.Context, _ domain.AudioFormat) (application.StreamChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	f.channel = newFakeChannel()
	return f.channel, nil
}

func (f *fakeTranscriber) lastChannel() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel
}

func (f *fakeTranscriber) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

type fakeCompleter struct {
	mu       sync.Mutex
	text     string
	err      error
	inputs   []string
	variants []domain.PromptVariant
}

func (f *fakeCompleter) Complete(_ context.Context, transcript string, variant domain.PromptVariant) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, transcript)
	f.variants = append(f.variants, variant)
	return f.text, f.err
}

func (f *fakeCompleter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string) (*domain.AudioResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	format := domain.AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}
	return domain.NewAudioResource("res-1", format, make([]byte, 480)), nil
}

func (f *fakeSynthesizer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakePlayer struct {
	mu     sync.Mutex
	err    error
	played []*domain.AudioResource
}

func (p *fakePlayer) Name() string { return "fake" }

func (p *fakePlayer) Play(_ context.Context, res *domain.AudioResource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, res)
	return p.err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

type memoryPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memoryPrefs) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryPrefs) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

type stateChange struct {
	state  domain.State
	reason domain.Reason
}

// recordingSink keeps every event in arrival order as "kind:detail" strings
// alongside typed copies.
type recordingSink struct {
	mu          sync.Mutex
	log         []string
	states      []stateChange
	transcripts []string
	responses   []domain.ResponseEnvelope
	errs        []error
	configs     []domain.PromptConfig
}

func (r *recordingSink) StateChanged(s domain.Session, reason domain.Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, stateChange{s.State, reason})
	r.log = append(r.log, "state:"+string(s.State))
}

func (r *recordingSink) TranscriptUpdated(_ string, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, text)
	r.log = append(r.log, "transcript")
}

func (r *recordingSink) ResponseReady(_ string, env domain.ResponseEnvelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, env)
	r.log = append(r.log, "response")
}

func (r *recordingSink) AudioReady(_ string, _ *domain.AudioResource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "audio")
}

func (r *recordingSink) ErrorOccurred(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.log = append(r.log, "error:"+string(domain.KindOf(err)))
}

func (r *recordingSink) ConfigUpdated(cfg domain.PromptConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	r.log = append(r.log, "config")
}

func (r *recordingSink) stateList() []domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.State, len(r.states))
	for i, s := range r.states {
		out[i] = s.state
	}
	return out
}

func (r *recordingSink) changes() []stateChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stateChange(nil), r.states...)
}

func (r *recordingSink) lastChange() (stateChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return stateChange{}, false
	}
	return r.states[len(r.states)-1], true
}

func (r *recordingSink) idleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s.state == domain.StateIdle {
			n++
		}
	}
	return n
}

func (r *recordingSink) configCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *recordingSink) lastConfig() domain.PromptConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[len(r.configs)-1]
}

func (r *recordingSink) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recordingSink) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recordingSink) lastTranscript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transcripts) == 0 {
		return ""
	}
	return r.transcripts[len(r.transcripts)-1]
}

type harness struct {
	capture     *fakeCapture
	transcriber *fakeTranscriber
	completer   *fakeCompleter
	synth       *fakeSynthesizer
	player      *fakePlayer
	prefs       *memoryPrefs
	sink        *recordingSink
	catalog     *application.PromptCatalog
	orch        *application.Orchestrator
	cfg         application.OrchestratorConfig
}

func testVariants() []domain.PromptVariant {
	return []domain.PromptVariant{
		{ID: "email", Name: "Email Writing", Instruction: "Write an email.", Temperature: 0.7, MaxTokens: 256},
		{ID: "grammar", Name: "Grammar Improvement", Instruction: "Fix grammar.", Temperature: 0.4, MaxTokens: 500},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	catalog, err := application.NewPromptCatalog(testVariants(), "email")
	require.NoError(t, err)

	return &harness{
		capture:     &fakeCapture{},
		transcriber: &fakeTranscriber{},
		completer:   &fakeCompleter{text: "<start>Hi back<end> note"},
		synth:       &fakeSynthesizer{},
		player:      &fakePlayer{},
		prefs:       &memoryPrefs{},
		sink:        &recordingSink{},
		catalog:     catalog,
		cfg: application.OrchestratorConfig{
			FinalWait: time.Second,
			Markers:   domain.DefaultMarkers(),
		},
	}
}

// run builds the orchestrator from the harness fakes and starts its loop.
func (h *harness) run(t *testing.T) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.orch = application.NewOrchestrator(application.Dependencies{
		Capture:     h.capture,
		Transcriber: h.transcriber,
		Completer:   h.completer,
		Synthesizer: h.synth,
		Player:      h.player,
		Prompts:     h.catalog,
		Prefs:       h.prefs,
		Sink:        h.sink,
	}, h.cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.orch.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return h.sink.configCount() >= 1 }, time.Second, time.Millisecond)
}

// barrier returns once every command posted before it has been handled.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	before := h.sink.configCount()
	h.orch.RequestConfig()
	require.Eventually(t, func() bool { return h.sink.configCount() > before }, time.Second, time.Millisecond)
}

func (h *harness) waitState(t *testing.T, state domain.State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.orch.State() == state }, 2*time.Second, time.Millisecond,
		"waiting for state %s, have %s", state, h.orch.State())
}

func (h *harness) waitIdle(t *testing.T, n int) stateChange {
	t.Helper()
	require.Eventually(t, func() bool { return h.sink.idleCount() >= n }, 2*time.Second, time.Millisecond,
		"waiting for session to end, states %v", h.sink.stateList())
	last, _ := h.sink.lastChange()
	return last
}

func (h *harness) startRecording(t *testing.T) *fakeChannel {
	t.Helper()
	h.orch.Start()
	h.waitState(t, domain.StateRecording)
	ch := h.transcriber.lastChannel()
	require.NotNil(t, ch)
	return ch
}
