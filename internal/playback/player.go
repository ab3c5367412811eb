// Package playback delivers framed audio to the output device.
package playback

import (
	"context"
	"errors"
	"sync"
)

// ErrPlayback reports a decode or device failure during playback.
var ErrPlayback = errors.New("playback failed")

// Player plays one framed audio container and returns when the audio ends
// naturally, or with ErrPlayback on failure.
type Player interface {
	Play(ctx context.Context, container []byte) error
}

type activePlay struct {
	cancel context.CancelFunc
}

// Output serializes access to the single audio device. Starting a new
// playback supersedes the one in progress: the prior Play call is cancelled
// and returns context.Canceled.
type Output struct {
	player Player

	mu     sync.Mutex
	active *activePlay
}

func NewOutput(player Player) *Output {
	return &Output{player: player}
}

func (o *Output) Play(ctx context.Context, container []byte) error {
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mine := &activePlay{cancel: cancel}

	o.mu.Lock()
	if o.active != nil {
		o.active.cancel()
	}
	o.active = mine
	o.mu.Unlock()

	err := o.player.Play(playCtx, container)

	o.mu.Lock()
	if o.active == mine {
		o.active = nil
	}
	o.mu.Unlock()
	return err
}

// Stop cancels any active playback.
func (o *Output) Stop() {
	o.mu.Lock()
	if o.active != nil {
		o.active.cancel()
		o.active = nil
	}
	o.mu.Unlock()
}
