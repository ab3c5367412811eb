package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const moderationPrompt = `You are a content safety classifier for a peer-support community chat. Decide whether the following message is safe to post. Unsafe categories: harassment, hate speech, encouragement of self-harm, sexual content involving minors, doxxing. Respond with a single JSON object: {"is_safe": true|false, "reason": "short explanation when unsafe"}.

Message:
%s`

type ollamaClassifier struct {
	endpoint string
	model    string
}

func NewOllamaClassifier(endpoint, model string) Classifier {
	return &ollamaClassifier{endpoint: endpoint, model: model}
}

type ollamaClassifyRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type ollamaClassifyResponse struct {
	Response string `json:"response"`
}

type classifyResult struct {
	IsSafe bool   `json:"is_safe"`
	Reason string `json:"reason"`
}

func (c *ollamaClassifier) Classify(ctx context.Context, text, _ string) (Verdict, error) {
	payload := ollamaClassifyRequest{
		Model:  c.model,
		Prompt: fmt.Sprintf(moderationPrompt, text),
		Stream: false,
		Format: "json",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Verdict{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Verdict{}, fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var outer ollamaClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&outer); err != nil {
		return Verdict{}, err
	}
	var result classifyResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(outer.Response)), &result); err != nil {
		return Verdict{}, fmt.Errorf("decode classifier verdict: %w", err)
	}
	return Verdict{Safe: result.IsSafe, Reason: result.Reason}, nil
}
