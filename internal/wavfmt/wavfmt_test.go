package wavfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestFrameHeaderFields(t *testing.T) {
	pcm := make([]byte, 48000)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	out, err := Frame(pcm, 1, 24000, 16)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if len(out) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[12:16]) != "fmt " {
		t.Fatalf("bad chunk ids: %q %q %q", out[0:4], out[8:12], out[12:16])
	}
	if tag := binary.LittleEndian.Uint16(out[20:22]); tag != 1 {
		t.Fatalf("expected PCM format tag 1, got %d", tag)
	}
	if ch := binary.LittleEndian.Uint16(out[22:24]); ch != 1 {
		t.Fatalf("expected 1 channel, got %d", ch)
	}
	if rate := binary.LittleEndian.Uint32(out[24:28]); rate != 24000 {
		t.Fatalf("expected sample rate 24000, got %d", rate)
	}
	if br := binary.LittleEndian.Uint32(out[28:32]); br != 48000 {
		t.Fatalf("expected byte rate 48000, got %d", br)
	}
	if ba := binary.LittleEndian.Uint16(out[32:34]); ba != 2 {
		t.Fatalf("expected block align 2, got %d", ba)
	}
	if dl := binary.LittleEndian.Uint32(out[40:44]); dl != uint32(len(pcm)) {
		t.Fatalf("expected data length %d, got %d", len(pcm), dl)
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Fatal("sample data was modified")
	}
}

func TestFrameDeterministic(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x12, 0x34}, 1024)
	a, err := Frame(pcm, 2, 44100, 16)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	b, err := Frame(pcm, 2, 44100, 16)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("expected byte-identical output for identical inputs")
	}
}

func TestFrameRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		pcm      []byte
		channels int
		rate     int
		depth    int
	}{
		{"empty", nil, 1, 24000, 16},
		{"odd length 16-bit", []byte{1, 2, 3}, 1, 24000, 16},
		{"misaligned stereo", bytes.Repeat([]byte{0}, 6), 2, 24000, 16},
		{"bad bit depth", bytes.Repeat([]byte{0}, 4), 1, 24000, 12},
		{"zero channels", bytes.Repeat([]byte{0}, 4), 0, 24000, 16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Frame(tc.pcm, tc.channels, tc.rate, tc.depth); !errors.Is(err, ErrInvalidSampleData) {
				t.Fatalf("expected ErrInvalidSampleData, got %v", err)
			}
		})
	}
}

func TestFrameDecodableByStandardReader(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x00, 0x40}, 24000) // one second of mono 16-bit
	out, err := Frame(pcm, 1, 24000, 16)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	dec := wav.NewDecoder(bytes.NewReader(out))
	dec.ReadInfo()
	if dec.Err() != nil {
		t.Fatalf("decoder rejected container: %v", dec.Err())
	}
	if dec.SampleRate != 24000 {
		t.Fatalf("decoder read sample rate %d", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Fatalf("decoder read %d channels", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Fatalf("decoder read bit depth %d", dec.BitDepth)
	}
	dur, err := dec.Duration()
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if got := dur.Seconds(); got < 0.99 || got > 1.01 {
		t.Fatalf("expected ~1s, got %fs", got)
	}

	dec = wav.NewDecoder(bytes.NewReader(out))
	buf := &audio.IntBuffer{Data: make([]int, 1024), Format: &audio.Format{NumChannels: 1, SampleRate: 24000}}
	n, err := dec.PCMBuffer(buf)
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	if n != 1024 {
		t.Fatalf("expected 1024 samples, got %d", n)
	}
	if buf.Data[0] != 0x4000 {
		t.Fatalf("sample value corrupted: %#x", buf.Data[0])
	}
}

func TestDuration(t *testing.T) {
	pcm := bytes.Repeat([]byte{0, 0}, 12000) // half a second at 24kHz mono 16-bit
	out, err := Frame(pcm, 1, 24000, 16)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	secs, err := Duration(out)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if secs < 0.49 || secs > 0.51 {
		t.Fatalf("expected ~0.5s, got %f", secs)
	}
}
