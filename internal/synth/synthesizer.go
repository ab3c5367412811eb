// Package synth turns reply text into raw PCM speech audio.
package synth

import "context"

// Request contains parameters to synthesize speech for one reply.
type Request struct {
	Text  string
	Voice string
}

// Result carries the raw synthesized samples and their encoding. The caller
// frames them into a playable container; nothing here is retained across
// turns.
type Result struct {
	PCM        []byte
	SampleRate int
	Channels   int
	BitDepth   int
}

// Synthesizer is the contract for producing audio from text.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Result, error)
}
