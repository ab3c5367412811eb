package synth

import (
	"context"
	"time"
)

type mockSynth struct {
	sampleRate int
	channels   int
	bitDepth   int
}

func NewMockSynth(sampleRate, channels, bitDepth int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels, bitDepth: bitDepth}
}

// Synthesize emits silence sized to roughly 60ms per word so mock playback
// has a plausible duration.
func (m *mockSynth) Synthesize(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}

	words := 1
	for _, r := range req.Text {
		if r == ' ' {
			words++
		}
	}
	blockAlign := m.channels * m.bitDepth / 8
	samples := m.sampleRate * words * 60 / 1000
	if samples == 0 {
		samples = m.sampleRate / 10
	}
	return Result{
		PCM:        make([]byte, samples*blockAlign),
		SampleRate: m.sampleRate,
		Channels:   m.channels,
		BitDepth:   m.bitDepth,
	}, nil
}
