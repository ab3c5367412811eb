package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execGenerator struct {
	cmd    []string
	maxTok int
	temp   float64
	mu     sync.Mutex
}

type execGenResponse struct {
	Text string `json:"text"`
}

func NewExecGenerator(command string, maxTokens int, temperature float64) (Generator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse generation command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("generation command is empty")
	}
	return &execGenerator{cmd: args, maxTok: maxTokens, temp: temperature}, nil
}

func (g *execGenerator) Generate(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	payload := map[string]any{
		"prompt":      ConversationPrompt(req),
		"system":      SystemPrompt(req),
		"max_tokens":  g.maxTok,
		"temperature": g.temp,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	base := g.cmd[0]
	args := append([]string{}, g.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("generation command failed: %w", err)
	}

	var resp execGenResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
