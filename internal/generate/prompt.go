package generate

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an AI wellness companion named Bloom. Your goal is to provide a safe, supportive, and empathetic space for the user to share their thoughts and feelings.

- Listen actively and respond with empathy and understanding.
- Ask open-ended questions to encourage reflection.
- Do not give direct advice, but help the user explore their own solutions.
- Keep your responses concise and conversational.
- Maintain a calm and non-judgmental tone.
- Do not diagnose or provide medical advice.
- If the user is in crisis, provide a supportive message and gently suggest they contact a crisis hotline or a mental health professional.`

// SystemPrompt renders the companion persona, extended with the user's
// wellness context when one is attached to the request.
func SystemPrompt(req Request) string {
	if req.Context == nil {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nUser Context:\n")
	fmt.Fprintf(&b, "- Current Mood: %s\n", req.Context.Mood)
	fmt.Fprintf(&b, "- Sleep Last Night: %g hours\n", req.Context.SleepHours)
	fmt.Fprintf(&b, "- Steps Today: %d\n", req.Context.Steps)
	if req.Context.Name != "" {
		fmt.Fprintf(&b, "- User Name: %s\n", req.Context.Name)
	}
	b.WriteString("\nUse this context to personalize your response. If the user's mood is low or sleep is poor, acknowledge it gently.")
	return b.String()
}

// ConversationPrompt flattens the history plus the newest utterance into a
// labelled transcript whose last line is always the user.
func ConversationPrompt(req Request) string {
	var b strings.Builder
	for _, m := range req.History {
		label := "[USER]"
		if m.Role == "model" {
			label = "[ASSISTANT]"
		}
		b.WriteString(label)
		b.WriteString(" ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString("[USER] ")
	b.WriteString(req.Utterance)
	return b.String()
}
