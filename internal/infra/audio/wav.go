package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"voicedesk/internal/domain"
)

// WriteWAV stores 16-bit PCM as a WAV file at path.
func WriteWAV(path string, format domain.AudioFormat, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}
	defer f.Close()

	samples := BytesToSamples(pcm)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	enc := wav.NewEncoder(f, format.SampleRate, 16, format.Channels, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// ReadWAV loads a 16-bit PCM WAV file.
func ReadWAV(path string) ([]byte, domain.AudioFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.AudioFormat{}, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, domain.AudioFormat{}, fmt.Errorf("%s is not a valid wav file", path)
	}
	if dec.BitDepth != 16 {
		return nil, domain.AudioFormat{}, fmt.Errorf("%s has %d-bit samples, want 16", path, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, domain.AudioFormat{}, fmt.Errorf("decoding wav: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	format := domain.AudioFormat{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	return SamplesToBytes(samples), format, nil
}
