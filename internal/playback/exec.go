package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// execPlayer pipes the framed container to an external player command
// (e.g. "aplay -q -") and waits for it to exit.
type execPlayer struct {
	cmd []string
}

func NewExecPlayer(command string) (Player, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse playback command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("playback command is empty")
	}
	return &execPlayer{cmd: args}, nil
}

func (e *execPlayer) Play(ctx context.Context, container []byte) error {
	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(container)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	return nil
}
