package moderation

import (
	"context"
	"strings"
)

// mockClassifier flags messages containing any blocklisted term. The default
// list covers the categories the community guidelines name; it is meant for
// development and tests, not production policy.
type mockClassifier struct {
	blocklist []string
}

var defaultBlocklist = []string{
	"kill yourself",
	"kys",
}

func NewMockClassifier(extra ...string) Classifier {
	return &mockClassifier{blocklist: append(append([]string{}, defaultBlocklist...), extra...)}
}

func (m *mockClassifier) Classify(_ context.Context, text, _ string) (Verdict, error) {
	lowered := strings.ToLower(text)
	for _, term := range m.blocklist {
		if strings.Contains(lowered, term) {
			return Verdict{Safe: false, Reason: "message contains harmful content"}, nil
		}
	}
	return Verdict{Safe: true}, nil
}
