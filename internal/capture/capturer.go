// Package capture wraps a speech-recognition backend behind a small
// start/stop contract. The adapter is policy-free: it never interprets the
// recognized text, it only buffers the latest partial and hands the final
// transcript back on stop.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied means the platform refused microphone access.
	ErrPermissionDenied = errors.New("capture: microphone permission denied")
	// ErrNoDevice means no capture device is available.
	ErrNoDevice = errors.New("capture: no capture device")
	// ErrAlreadyActive means Start was called while a capture is running.
	ErrAlreadyActive = errors.New("capture: already active")
	// ErrNotActive means Stop was called with no capture running.
	ErrNotActive = errors.New("capture: not active")
)

// Capturer begins listening on Start and yields the final transcript on
// Stop. While active it invokes onPartial with each incremental guess; a
// later partial replaces, never extends, the previous one. Stop with an
// empty transcript is a valid result, not an error — it covers both manual
// stop before speech and a no-speech timeout in the backend.
type Capturer interface {
	Start(ctx context.Context, onPartial func(text string)) error
	Stop() (string, error)
}
