package domain

import "time"

type AudioFormat struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

func CaptureFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}

// BytesPerSecond is the byte rate of interleaved PCM in this format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// AudioResource is a synthesized response held in memory as little-endian PCM.
type AudioResource struct {
	ID       string        `json:"id"`
	Format   AudioFormat   `json:"format"`
	Data     []byte        `json:"-"`
	Duration time.Duration `json:"duration"`
	Path     string        `json:"path,omitempty"`
}

func NewAudioResource(id string, format AudioFormat, data []byte) *AudioResource {
	res := &AudioResource{ID: id, Format: format, Data: data}
	if bps := format.BytesPerSecond(); bps > 0 {
		res.Duration = time.Duration(len(data)) * time.Second / time.Duration(bps)
	}
	return res
}
