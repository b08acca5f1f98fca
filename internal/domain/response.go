package domain

import "strings"

const (
	DefaultStartMarker = "<start>"
	DefaultEndMarker   = "<end>"
)

type Markers struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

func DefaultMarkers() Markers {
	return Markers{Start: DefaultStartMarker, End: DefaultEndMarker}
}

// Extract returns the trimmed text between the first start marker and the
// first end marker. If either is missing, or the end marker comes first,
// the response is returned unchanged.
func (m Markers) Extract(raw string) string {
	if m.Start == "" || m.End == "" {
		return raw
	}
	start := strings.Index(raw, m.Start)
	end := strings.Index(raw, m.End)
	if start < 0 || end < 0 {
		return raw
	}
	from := start + len(m.Start)
	if from > end {
		return raw
	}
	return strings.TrimSpace(raw[from:end])
}

// ResponseEnvelope carries a completion result. SpokenPortion is computed
// once and used both for display and for synthesis.
type ResponseEnvelope struct {
	RawText       string `json:"raw_text"`
	SpokenPortion string `json:"spoken_portion"`
}

func NewResponseEnvelope(raw string, m Markers) ResponseEnvelope {
	return ResponseEnvelope{RawText: raw, SpokenPortion: m.Extract(raw)}
}
