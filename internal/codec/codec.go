// Package codec provides binary/text transcoding and raw audio decoding.
// It contains pure functions with no state; the rest of the pipeline builds
// on these primitives for voiceover handling.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedAudio is returned when audio parameters are invalid.
var ErrMalformedAudio = errors.New("codec: malformed audio parameters")

// AudioBuffer holds decoded, de-interleaved audio samples.
// Each channel slice has the same length; samples are normalized to [-1.0, 1.0].
type AudioBuffer struct {
	// SampleRate is the number of frames per second.
	SampleRate int
	// Channels holds one sample slice per channel.
	Channels [][]float32
}

// Frames returns the number of sample frames per channel.
func (b *AudioBuffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns the channel count.
func (b *AudioBuffer) NumChannels() int {
	return len(b.Channels)
}

// Duration returns the playable duration of the buffer.
func (b *AudioBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// EncodeBytes encodes arbitrary bytes as standard base64 text.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeText decodes standard base64 text back into bytes.
// DecodeText(EncodeBytes(x)) == x for any x, including empty input.
func DecodeText(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("codec: decode base64: %w", err)
	}
	return data, nil
}

// DecodeRawPCM interprets data as little-endian signed 16-bit PCM and
// de-interleaves it into channels sample tracks. Each sample is normalized
// to the floating range [-1.0, 1.0] by dividing by 32768. The frame count is
// the total sample count divided by the channel count; a trailing partial
// frame is dropped.
func DecodeRawPCM(data []byte, sampleRate, channels int) (*AudioBuffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrMalformedAudio, channels)
	}

	samples := len(data) / 2
	frames := samples / channels

	buf := &AudioBuffer{
		SampleRate: sampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := range buf.Channels {
		buf.Channels[ch] = make([]float32, frames)
	}

	for frame := 0; frame < frames; frame++ {
		for ch := 0; ch < channels; ch++ {
			i := (frame*channels + ch) * 2
			sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
			buf.Channels[ch][frame] = float32(sample) / 32768
		}
	}

	return buf, nil
}
