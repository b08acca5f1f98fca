package application_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicedesk/internal/domain"
)

func TestOrchestrator_FullSession(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	ch := h.startRecording(t)
	stream := h.capture.lastStream()

	stream.emit([]byte{1, 2})
	stream.emit([]byte{3, 4})

	ch.emit("hel", false)
	ch.emit("hello", true)
	ch.emit("the", false)
	ch.emit("there", true)
	require.Eventually(t, func() bool { return h.sink.lastTranscript() == "hello there" }, time.Second, time.Millisecond)

	h.orch.Stop()
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonCompleted, last.reason)
	assert.Equal(t, []domain.State{
		domain.StateRecording,
		domain.StateAwaitingFinal,
		domain.StateGenerating,
		domain.StateSynthesizing,
		domain.StatePlaying,
		domain.StateIdle,
	}, h.sink.stateList())

	assert.Equal(t, []string{"hello there"}, h.completer.calls())
	assert.Equal(t, "email", h.completer.variants[0].ID)
	assert.Equal(t, []string{"Hi back"}, h.synth.calls())
	assert.Equal(t, 1, h.player.count())

	sent, closeSend, closed := ch.counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, closeSend)
	assert.GreaterOrEqual(t, closed, 1)
	assert.True(t, stream.isStopped())
}

func TestOrchestrator_DisplayMatchesSynthesisInput(t *testing.T) {
	h := newHarness(t)
	h.completer.text = "Here you go:\n<start>\nDear team,\nThe launch moved.\n<end>\nLet me know."
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("tell the team the launch moved", true)
	h.orch.Stop()
	h.waitIdle(t, 1)

	require.Len(t, h.sink.responses, 1)
	assert.Equal(t, "Dear team,\nThe launch moved.", h.sink.responses[0].SpokenPortion)
	assert.Equal(t, []string{h.sink.responses[0].SpokenPortion}, h.synth.calls())
}

func TestOrchestrator_UnmarkedResponseSpokenVerbatim(t *testing.T) {
	h := newHarness(t)
	h.completer.text = "No markers here."
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("anything", true)
	h.orch.Stop()
	h.waitIdle(t, 1)

	assert.Equal(t, []string{"No markers here."}, h.synth.calls())
}

func TestOrchestrator_StartIgnoredWhenActive(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	h.startRecording(t)
	h.orch.Start()
	h.orch.Start()
	h.barrier(t)

	assert.Equal(t, 1, h.capture.startCount())
	assert.Equal(t, 1, h.transcriber.openCount())
	assert.Equal(t, domain.StateRecording, h.orch.State())
	assert.Equal(t, []domain.State{domain.StateRecording}, h.sink.stateList())
}

func TestOrchestrator_StopIgnoredWhenNotRecording(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	h.orch.Stop()
	h.barrier(t)

	assert.Equal(t, domain.StateIdle, h.orch.State())
	assert.Empty(t, h.sink.stateList())
	assert.Empty(t, h.completer.calls())
	assert.Equal(t, 0, h.capture.startCount())
}

func TestOrchestrator_StopIgnoredWhileGenerating(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("hello", true)
	h.orch.Stop()
	h.orch.Stop()
	h.waitIdle(t, 1)

	assert.Len(t, h.completer.calls(), 1)
	_, closeSend, _ := ch.counts()
	assert.Equal(t, 1, closeSend)
}

func TestOrchestrator_NoSpeechAfterWait(t *testing.T) {
	h := newHarness(t)
	h.cfg.FinalWait = 20 * time.Millisecond
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("mmm", false)
	h.orch.Stop()

	last := h.waitIdle(t, 1)
	assert.Equal(t, domain.ReasonNoSpeech, last.reason)
	assert.Empty(t, h.completer.calls())
	assert.Empty(t, h.synth.calls())
	assert.Empty(t, h.sink.errors())
}

func TestOrchestrator_WaitsForLateFinal(t *testing.T) {
	h := newHarness(t)
	h.cfg.FinalWait = 5 * time.Second
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("late", false)
	h.orch.Stop()
	h.waitState(t, domain.StateAwaitingFinal)

	ch.emit("late words", true)
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonCompleted, last.reason)
	assert.Equal(t, []string{"late words"}, h.completer.calls())
}

func TestOrchestrator_ChannelEndDuringWaitProceeds(t *testing.T) {
	h := newHarness(t)
	h.cfg.FinalWait = 5 * time.Second
	h.run(t)

	ch := h.startRecording(t)
	h.orch.Stop()
	h.waitState(t, domain.StateAwaitingFinal)

	ch.end(nil)
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonNoSpeech, last.reason)
}

func TestOrchestrator_DeviceErrorReleasesAndReturnsIdle(t *testing.T) {
	h := newHarness(t)
	h.capture.err = domain.DeviceError("opening microphone", domain.ErrNoDevice)
	h.run(t)

	h.orch.Start()
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonFailed, last.reason)
	assert.Equal(t, []domain.State{domain.StateError, domain.StateIdle}, h.sink.stateList())
	require.Len(t, h.sink.errors(), 1)
	assert.Equal(t, domain.KindDevice, domain.KindOf(h.sink.errors()[0]))
	assert.Equal(t, 0, h.transcriber.openCount())
}

func TestOrchestrator_ChannelOpenFailureReleasesMicrophone(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = errors.New("connection refused")
	h.run(t)

	h.orch.Start()
	h.waitIdle(t, 1)

	require.Len(t, h.sink.errors(), 1)
	assert.Equal(t, domain.KindChannel, domain.KindOf(h.sink.errors()[0]))
	assert.True(t, h.capture.lastStream().isStopped())
}

func TestOrchestrator_CompletionFailure(t *testing.T) {
	h := newHarness(t)
	h.completer.err = errors.New("openai API error 500: boom")
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("hello", true)
	h.orch.Stop()
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonFailed, last.reason)
	assert.Equal(t, []string{"error:completion"}, filterPrefix(h.sink.events(), "error:"))
	assert.Empty(t, h.synth.calls())
	assert.Empty(t, h.sink.responses)

	_, _, closed := ch.counts()
	assert.GreaterOrEqual(t, closed, 1)
	assert.True(t, h.capture.lastStream().isStopped())
}

func TestOrchestrator_SynthesisFailureAfterResponse(t *testing.T) {
	h := newHarness(t)
	h.synth.err = errors.New("deepgram API error 401: unauthorized")
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("hello", true)
	h.orch.Stop()
	h.waitIdle(t, 1)

	events := filterOut(h.sink.events(), "transcript", "config")
	assert.Equal(t, []string{
		"state:recording",
		"state:awaiting_final",
		"state:generating",
		"response",
		"state:synthesizing",
		"state:error",
		"error:synthesis",
		"state:idle",
	}, events)
	assert.Equal(t, 0, h.player.count())
}

func TestOrchestrator_PlaybackFailure(t *testing.T) {
	h := newHarness(t)
	h.player.err = domain.PlaybackError("writing samples", errors.New("device lost"))
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("hello", true)
	h.orch.Stop()
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonFailed, last.reason)
	require.Len(t, h.sink.errors(), 1)
	assert.Equal(t, domain.KindPlayback, domain.KindOf(h.sink.errors()[0]))
}

func TestOrchestrator_NothingToSpeak(t *testing.T) {
	h := newHarness(t)
	h.completer.text = "<start>   <end> nothing inside"
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("hello", true)
	h.orch.Stop()
	last := h.waitIdle(t, 1)

	assert.Equal(t, domain.ReasonNothingToSpeak, last.reason)
	assert.Empty(t, h.synth.calls())
	assert.Len(t, h.sink.responses, 1)
}

func TestOrchestrator_ChannelClosedWhileRecording(t *testing.T) {
	t.Run("with text proceeds", func(t *testing.T) {
		h := newHarness(t)
		h.run(t)

		ch := h.startRecording(t)
		ch.emit("hello", true)
		ch.end(errors.New("connection reset"))

		last := h.waitIdle(t, 1)
		assert.Equal(t, domain.ReasonCompleted, last.reason)
		assert.Contains(t, h.sink.changes(), stateChange{domain.StateAwaitingFinal, domain.ReasonChannelClosed})
		assert.Equal(t, []string{"hello"}, h.completer.calls())
		assert.True(t, h.capture.lastStream().isStopped())
	})

	t.Run("without text fails", func(t *testing.T) {
		h := newHarness(t)
		h.run(t)

		ch := h.startRecording(t)
		ch.end(errors.New("connection reset"))

		last := h.waitIdle(t, 1)
		assert.Equal(t, domain.ReasonFailed, last.reason)
		require.Len(t, h.sink.errors(), 1)
		assert.Equal(t, domain.KindChannel, domain.KindOf(h.sink.errors()[0]))
		assert.True(t, h.capture.lastStream().isStopped())
	})

	t.Run("clean close without text is no speech", func(t *testing.T) {
		h := newHarness(t)
		h.run(t)

		ch := h.startRecording(t)
		ch.end(nil)

		last := h.waitIdle(t, 1)
		assert.Equal(t, domain.ReasonNoSpeech, last.reason)
	})
}

func TestOrchestrator_RecoversAfterError(t *testing.T) {
	h := newHarness(t)
	h.capture.err = domain.DeviceError("opening microphone", domain.ErrNoDevice)
	h.run(t)

	h.orch.Start()
	h.waitIdle(t, 1)

	h.capture.mu.Lock()
	h.capture.err = nil
	h.capture.mu.Unlock()

	ch := h.startRecording(t)
	ch.emit("second try", true)
	h.orch.Stop()
	last := h.waitIdle(t, 2)

	assert.Equal(t, domain.ReasonCompleted, last.reason)
	assert.Equal(t, []string{"second try"}, h.completer.calls())
}

func TestOrchestrator_TranscriptResetBetweenSessions(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	ch := h.startRecording(t)
	ch.emit("first", true)
	h.orch.Stop()
	h.waitIdle(t, 1)

	ch = h.startRecording(t)
	ch.emit("second", true)
	h.orch.Stop()
	h.waitIdle(t, 2)

	assert.Equal(t, []string{"first", "second"}, h.completer.calls())
}

func TestOrchestrator_SelectPromptVariant(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	assert.Equal(t, "email", h.sink.lastConfig().Active)
	assert.Len(t, h.sink.lastConfig().Variants, 2)

	h.orch.SelectPromptVariant("grammar")
	require.Eventually(t, func() bool { return h.sink.lastConfig().Active == "grammar" }, time.Second, time.Millisecond)

	stored, ok, err := h.prefs.Get(t.Context(), "active_prompt_variant")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "grammar", stored)

	ch := h.startRecording(t)
	ch.emit("their going", true)
	h.orch.Stop()
	h.waitIdle(t, 1)

	require.Len(t, h.completer.variants, 1)
	assert.Equal(t, "grammar", h.completer.variants[0].ID)
	assert.Equal(t, 0.4, h.completer.variants[0].Temperature)
}

func TestOrchestrator_SelectUnknownVariant(t *testing.T) {
	h := newHarness(t)
	h.run(t)

	h.orch.SelectPromptVariant("haiku")
	h.barrier(t)

	require.Len(t, h.sink.errors(), 1)
	assert.Equal(t, domain.KindConfig, domain.KindOf(h.sink.errors()[0]))
	assert.ErrorIs(t, h.sink.errors()[0], domain.ErrUnknownVariant)
	assert.Equal(t, "email", h.sink.lastConfig().Active)
	assert.Equal(t, domain.StateIdle, h.orch.State())
}

func TestOrchestrator_RestoresStoredVariant(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.prefs.Set(t.Context(), "active_prompt_variant", "grammar"))
	h.run(t)

	assert.Equal(t, "grammar", h.sink.lastConfig().Active)
}

func TestOrchestrator_IgnoresStaleStoredVariant(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.prefs.Set(t.Context(), "active_prompt_variant", "removed"))
	h.run(t)

	assert.Equal(t, "email", h.sink.lastConfig().Active)
}

func filterPrefix(events []string, prefix string) []string {
	var out []string
	for _, e := range events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

func filterOut(events []string, drop ...string) []string {
	var out []string
next:
	for _, e := range events {
		for _, d := range drop {
			if e == d {
				continue next
			}
		}
		out = append(out, e)
	}
	return out
}
