// Package generate produces the companion's conversational replies.
package generate

import (
	"context"

	"github.com/bloomlabs/bloom-core/internal/wellness"
)

// Message is one prior exchange in the conversation, oldest first.
type Message struct {
	Role string // "user" or "model"
	Text string
}

// Request describes a reply generation call: the conversation so far, the
// user's newest utterance, and an optional wellness snapshot used to
// personalize the reply.
type Request struct {
	History   []Message
	Utterance string
	Context   *wellness.Snapshot
}

// Generator defines a pluggable text-generation backend. Generate returns
// the reply text; an empty reply is treated by callers as a failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
