package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type blockingPlayer struct {
	started chan struct{}
}

func (p *blockingPlayer) Play(ctx context.Context, _ []byte) error {
	p.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestOutputSupersedesActivePlayback(t *testing.T) {
	inner := &blockingPlayer{started: make(chan struct{}, 2)}
	out := NewOutput(inner)

	var wg sync.WaitGroup
	errs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- out.Play(context.Background(), []byte("first"))
	}()
	<-inner.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = out.Play(context.Background(), []byte("second"))
	}()
	<-inner.started

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected first playback cancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first playback was not superseded")
	}

	out.Stop()
	wg.Wait()
}

func TestOutputStop(t *testing.T) {
	inner := &blockingPlayer{started: make(chan struct{}, 1)}
	out := NewOutput(inner)

	errs := make(chan error, 1)
	go func() { errs <- out.Play(context.Background(), nil) }()
	<-inner.started
	out.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("playback did not stop")
	}
}

func TestMockPlayerRejectsGarbage(t *testing.T) {
	p := NewMockPlayer()
	if err := p.Play(context.Background(), []byte("not a wav")); !errors.Is(err, ErrPlayback) {
		t.Fatalf("expected ErrPlayback, got %v", err)
	}
}
