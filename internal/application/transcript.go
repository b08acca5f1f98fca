package application

import (
	"strings"

	"voicedesk/internal/domain"
)

// TranscriptAccumulator reconciles streaming recognition results into a
// stable transcript. Final segments are never revised; the tentative segment
// is replaced by every non-final result and cleared by every final one.
type TranscriptAccumulator struct {
	finals        []string
	tentative     string
	finalReceived bool
}

// Apply folds one recognition result in and reports whether the displayable
// text changed. Empty or whitespace-only text is ignored; anything else is
// kept exactly as recognized.
func (t *TranscriptAccumulator) Apply(ev domain.RecognitionEvent) bool {
	if strings.TrimSpace(ev.Text) == "" {
		return false
	}
	text := ev.Text

	if ev.IsFinal {
		t.finals = append(t.finals, text)
		t.tentative = ""
		t.finalReceived = true
		return true
	}

	if t.tentative == text {
		return false
	}
	t.tentative = text
	return true
}

// Canonical is the text submitted for completion: finalized segments only.
func (t *TranscriptAccumulator) Canonical() string {
	return strings.Join(t.finals, " ")
}

// Display is the canonical text followed by the tentative segment, if any.
func (t *TranscriptAccumulator) Display() string {
	if t.tentative == "" {
		return t.Canonical()
	}
	if len(t.finals) == 0 {
		return t.tentative
	}
	return t.Canonical() + " " + t.tentative
}

func (t *TranscriptAccumulator) FinalReceived() bool {
	return t.finalReceived
}

func (t *TranscriptAccumulator) Reset() {
	t.finals = nil
	t.tentative = ""
	t.finalReceived = false
}
