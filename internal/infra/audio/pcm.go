package audio

import "encoding/binary"

// BytesToSamples decodes little-endian signed 16-bit PCM. A trailing odd byte
// is ignored.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func SamplesToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// playbackCursor feeds a PCM buffer to a pull-style device callback. Done is
// reported one callback after the last bytes were handed over, once the
// device has asked for more and so has the final period queued for output.
type playbackCursor struct {
	data    []byte
	pos     int
	drained bool
}

// fill writes the next period into out, padding with silence, and reports
// whether playback is complete.
func (c *playbackCursor) fill(out []byte) bool {
	if c.drained {
		clear(out)
		return true
	}
	n := copy(out, c.data[c.pos:])
	c.pos += n
	clear(out[n:])
	if c.pos >= len(c.data) {
		c.drained = true
	}
	return false
}
