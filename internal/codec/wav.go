package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Static errors for WAV decoding.
var (
	// ErrNotWAV is returned when the input is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("codec: not a RIFF/WAVE file")
	// ErrUnsupportedWAV is returned for WAV encodings other than 16-bit PCM.
	ErrUnsupportedWAV = errors.New("codec: unsupported WAV encoding")
)

const (
	wavFormatPCM       = 1
	wavHeaderLen       = 12
	wavChunkHeaderLen  = 8
	wavFmtChunkMinSize = 16
)

// DecodeWAV decodes a RIFF/WAVE container holding 16-bit PCM audio into an
// AudioBuffer. This is the decode path for user-recorded voiceover clips,
// which arrive as complete WAV files rather than raw sample streams.
func DecodeWAV(data []byte) (*AudioBuffer, error) {
	if len(data) < wavHeaderLen || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []byte
		haveFmt       bool
	)

	// Walk the chunk list; only "fmt " and "data" matter here.
	offset := wavHeaderLen
	for offset+wavChunkHeaderLen <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + wavChunkHeaderLen
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < wavFmtChunkMinSize {
				return nil, fmt.Errorf("%w: fmt chunk too short", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != wavFormatPCM {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	if !haveFmt || pcm == nil {
		return nil, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedWAV, bitsPerSample)
	}

	return DecodeRawPCM(pcm, sampleRate, channels)
}
