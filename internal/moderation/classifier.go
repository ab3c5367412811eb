// Package moderation gates community chat messages through a safety
// classifier before they are stored or broadcast.
package moderation

import "context"

// Verdict is the classifier's decision for one message.
type Verdict struct {
	Safe   bool
	Reason string
}

// Classifier decides whether a message is safe to post. The user ID lets
// backends apply per-user policy; the classifier itself is opaque here.
type Classifier interface {
	Classify(ctx context.Context, text, userID string) (Verdict, error)
}
