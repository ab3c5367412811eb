package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/bloomlabs/bloom-core/internal/config"
)

// execCapturer drives an external recognizer process. The process emits one
// JSON object per stdout line while listening; closing its stdin asks it to
// finalize and exit. Events:
//
//	{"event":"ready"}
//	{"event":"partial","text":"..."}
//	{"event":"final","text":"..."}
//	{"event":"error","code":"permission-denied"|"no-device","message":"..."}
type execCapturer struct {
	cmd []string
	cfg config.CaptureConfig

	mu        sync.Mutex
	active    bool
	proc      *exec.Cmd
	stdin     io.WriteCloser
	buffer    string
	final     string
	runErr    error
	done      chan struct{}
	onPartial func(string)
}

type execEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewExecCapturer(cfg config.CaptureConfig) (Capturer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	return &execCapturer{cmd: args, cfg: cfg}, nil
}

func (e *execCapturer) Start(ctx context.Context, onPartial func(text string)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return ErrAlreadyActive
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	args = append(args,
		"--sample-rate", strconv.Itoa(e.cfg.SampleRate),
		"--channels", strconv.Itoa(e.cfg.Channels),
	)
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}
	if e.cfg.NoSpeechTimeout > 0 {
		args = append(args, "--no-speech-timeout-ms", strconv.Itoa(e.cfg.NoSpeechTimeout))
	}

	proc := exec.CommandContext(ctx, base, args...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		return fmt.Errorf("capture stdin: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	ready := make(chan error, 1)
	done := make(chan struct{})
	go e.consume(proc, stdout, ready, done)

	select {
	case err := <-ready:
		if err != nil {
			stdin.Close()
			proc.Wait()
			return err
		}
	case <-time.After(5 * time.Second):
		stdin.Close()
		proc.Wait()
		return fmt.Errorf("%w: recognizer did not become ready", ErrNoDevice)
	}

	e.active = true
	e.proc = proc
	e.stdin = stdin
	e.buffer = ""
	e.final = ""
	e.runErr = nil
	e.done = done
	e.onPartial = onPartial
	return nil
}

func (e *execCapturer) consume(proc *exec.Cmd, stdout io.Reader, ready chan<- error, done chan struct{}) {
	defer close(done)
	defer proc.Wait()

	scanner := bufio.NewScanner(stdout)
	signaled := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt execEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		switch evt.Event {
		case "ready":
			if !signaled {
				signaled = true
				ready <- nil
			}
		case "partial":
			e.mu.Lock()
			e.buffer = evt.Text
			cb := e.onPartial
			e.mu.Unlock()
			if cb != nil {
				cb(evt.Text)
			}
		case "final":
			e.mu.Lock()
			e.final = evt.Text
			e.mu.Unlock()
		case "error":
			err := mapExecError(evt)
			if !signaled {
				signaled = true
				ready <- err
				return
			}
			e.mu.Lock()
			e.runErr = err
			e.mu.Unlock()
		}
	}
	if !signaled {
		ready <- fmt.Errorf("%w: recognizer exited before ready", ErrNoDevice)
	}
}

func mapExecError(evt execEvent) error {
	switch evt.Code {
	case "permission-denied":
		return fmt.Errorf("%w: %s", ErrPermissionDenied, evt.Message)
	case "no-device":
		return fmt.Errorf("%w: %s", ErrNoDevice, evt.Message)
	default:
		return fmt.Errorf("capture: recognizer error: %s", evt.Message)
	}
}

func (e *execCapturer) Stop() (string, error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return "", ErrNotActive
	}
	e.active = false
	e.onPartial = nil
	stdin := e.stdin
	done := e.done
	e.mu.Unlock()

	// Closing stdin asks the recognizer to finalize and exit.
	stdin.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.proc.Process.Kill()
		<-done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runErr != nil {
		return "", e.runErr
	}
	if e.final != "" {
		return e.final, nil
	}
	return e.buffer, nil
}
