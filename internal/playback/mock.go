package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/bloomlabs/bloom-core/internal/wavfmt"
)

// MockPlayer sleeps for the container's declared duration, scaled down so
// tests stay fast. Scale 0 means real time.
type MockPlayer struct {
	Scale time.Duration // duration divisor, e.g. 100 plays at 100x speed
}

func NewMockPlayer() *MockPlayer { return &MockPlayer{Scale: 100} }

func (m *MockPlayer) Play(ctx context.Context, container []byte) error {
	secs, err := wavfmt.Duration(container)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	d := time.Duration(secs * float64(time.Second))
	if m.Scale > 0 {
		d /= m.Scale
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
