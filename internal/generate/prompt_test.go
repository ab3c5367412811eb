package generate

import (
	"strings"
	"testing"

	"github.com/bloomlabs/bloom-core/internal/wellness"
)

func TestSystemPromptWithoutContext(t *testing.T) {
	got := SystemPrompt(Request{Utterance: "hi"})
	if strings.Contains(got, "User Context") {
		t.Fatal("context block should be absent when no snapshot attached")
	}
	if !strings.Contains(got, "Bloom") {
		t.Fatal("persona missing from system prompt")
	}
}

func TestSystemPromptWithContext(t *testing.T) {
	snap := wellness.Snapshot{Mood: "Bad", SleepHours: 4.5, Steps: 1200, Name: "Sam"}
	got := SystemPrompt(Request{Utterance: "hi", Context: &snap})
	for _, want := range []string{"Current Mood: Bad", "Sleep Last Night: 4.5 hours", "Steps Today: 1200", "User Name: Sam"} {
		if !strings.Contains(got, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, got)
		}
	}
}

func TestConversationPromptEndsWithUser(t *testing.T) {
	req := Request{
		History: []Message{
			{Role: "user", Text: "I slept badly"},
			{Role: "model", Text: "That sounds rough. What kept you up?"},
		},
		Utterance: "work worries",
	}
	got := ConversationPrompt(req)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "[USER] I slept badly" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if lines[1] != "[ASSISTANT] That sounds rough. What kept you up?" {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if lines[2] != "[USER] work worries" {
		t.Fatalf("prompt must end with the new utterance, got %q", lines[2])
	}
}
