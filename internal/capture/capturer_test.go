package capture

import (
	"context"
	"errors"
	"testing"
)

func TestMockPartialsReplace(t *testing.T) {
	m := NewMockCapturer()
	var seen []string
	if err := m.Start(context.Background(), func(text string) { seen = append(seen, text) }); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.EmitPartial("I feel")
	m.EmitPartial("I feel anxious")
	m.EmitPartial("I feel anxious today")

	text, err := m.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if text != "I feel anxious today" {
		t.Fatalf("expected latest partial as final, got %q", text)
	}
	if len(seen) != 3 || seen[1] != "I feel anxious" {
		t.Fatalf("unexpected partial updates: %v", seen)
	}
}

func TestMockEmptyStopIsNotAnError(t *testing.T) {
	m := NewMockCapturer()
	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	text, err := m.Stop()
	if err != nil {
		t.Fatalf("stop with no speech should succeed, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
}

func TestMockStartGuards(t *testing.T) {
	m := NewMockCapturer()
	if err := m.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background(), nil); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if _, err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := m.Stop(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestMockStartError(t *testing.T) {
	m := NewMockCapturer()
	m.StartErr = ErrPermissionDenied
	if err := m.Start(context.Background(), nil); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if m.Active() {
		t.Fatal("capturer must not be active after a failed start")
	}
}
