// Package wavfmt wraps raw PCM sample data in a standard WAV container so
// generic audio players can decode it from the header alone.
package wavfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidSampleData reports PCM input that cannot form whole frames:
// empty, or not a multiple of the block align (channels * bitDepth/8).
var ErrInvalidSampleData = errors.New("wavfmt: invalid sample data")

const headerSize = 44

// Frame produces a complete WAV file: RIFF header, fmt chunk describing the
// given encoding parameters, and a data chunk holding pcm unmodified.
// Deterministic: identical inputs yield byte-identical output.
func Frame(pcm []byte, channels, sampleRateHz, bitDepth int) ([]byte, error) {
	if channels <= 0 || sampleRateHz <= 0 {
		return nil, fmt.Errorf("%w: channels=%d sample_rate=%d", ErrInvalidSampleData, channels, sampleRateHz)
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidSampleData, bitDepth)
	}

	blockAlign := channels * bitDepth / 8
	if len(pcm) == 0 || len(pcm)%blockAlign != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a positive multiple of block align %d", ErrInvalidSampleData, len(pcm), blockAlign)
	}

	byteRate := sampleRateHz * blockAlign

	var buf bytes.Buffer
	buf.Grow(headerSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM format tag
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRateHz))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// Duration returns the playable length in seconds of a container produced by
// Frame, derived from the header fields only.
func Duration(container []byte) (float64, error) {
	if len(container) < headerSize {
		return 0, fmt.Errorf("%w: container shorter than header", ErrInvalidSampleData)
	}
	byteRate := binary.LittleEndian.Uint32(container[28:32])
	dataLen := binary.LittleEndian.Uint32(container[40:44])
	if byteRate == 0 {
		return 0, fmt.Errorf("%w: zero byte rate", ErrInvalidSampleData)
	}
	return float64(dataLen) / float64(byteRate), nil
}
