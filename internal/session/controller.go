// Package session implements the conversation session controller: a
// single-user state machine that turns finalized utterances into replies,
// driving generation, synthesis, framing, and playback in strict order.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bloomlabs/bloom-core/internal/capture"
	"github.com/bloomlabs/bloom-core/internal/config"
	"github.com/bloomlabs/bloom-core/internal/generate"
	"github.com/bloomlabs/bloom-core/internal/playback"
	"github.com/bloomlabs/bloom-core/internal/protocol"
	"github.com/bloomlabs/bloom-core/internal/synth"
	"github.com/bloomlabs/bloom-core/internal/transcriptstore"
	"github.com/bloomlabs/bloom-core/internal/wavfmt"
	"github.com/bloomlabs/bloom-core/internal/wellness"
)

// State is the controller's position in the turn cycle.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// FallbackReply replaces the agent's answer when generation fails or comes
// back empty. It is recorded as a real agent turn.
const FallbackReply = "I'm having a little trouble connecting right now. Please give me a moment."

// Voices lists the synthesis voices a session may select.
var Voices = []string{"Algenib", "Achernar", "Schedar", "Umbriel", "Puck", "Gacrux", "Zephyr"}

var (
	// ErrEmptyUtterance rejects blank or whitespace-only submissions before
	// any state change or external call.
	ErrEmptyUtterance = errors.New("session: empty utterance")
	// ErrSessionBusy means a submission arrived while a turn was in flight.
	// The submission is dropped; history is untouched.
	ErrSessionBusy = errors.New("session: a turn is already in progress")
	// ErrCaptureUnavailable means no speech capture backend is configured.
	ErrCaptureUnavailable = errors.New("session: capture not available")
	// ErrUnknownVoice rejects a voice outside the catalogue.
	ErrUnknownVoice = errors.New("session: unknown voice")
	// ErrNotIdle guards voice changes while a turn or capture is active.
	ErrNotIdle = errors.New("session: session is not idle")
)

// Turn is one recorded message in the conversation. Degraded marks an agent
// turn whose speech synthesis failed; the text still counts.
type Turn struct {
	Speaker  string    `json:"speaker"`
	Text     string    `json:"text"`
	Degraded bool      `json:"degraded,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is the subset of the bus connection the controller needs for
// state-change notifications.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Deps bundles the controller's collaborators. Synthesizer, Output,
// Capturer, Wellness, Store, and Publisher may each be nil; the controller
// degrades to the text-only subset of its behavior.
type Deps struct {
	Generator   generate.Generator
	Synthesizer synth.Synthesizer
	Output      *playback.Output
	Capturer    capture.Capturer
	Wellness    *wellness.Store
	Store       *transcriptstore.Store
	Publisher   Publisher
}

// Controller owns the session state and history. All mutation goes through
// it; collaborators only ever see snapshots.
type Controller struct {
	id     string
	cfg    config.SessionConfig
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	history []Turn
	pending string
	voice   string

	// captureMu serializes StartCapture/StopCapture so a slow backend
	// start cannot interleave with teardown.
	captureMu sync.Mutex

	wg sync.WaitGroup

	tracer        trace.Tracer
	meter         metric.Meter
	turnsTotal    metric.Int64Counter
	fallbackTotal metric.Int64Counter
	degradedTotal metric.Int64Counter
	turnSeconds   metric.Float64Histogram
}

func NewController(cfg config.SessionConfig, deps Deps, logger *slog.Logger) *Controller {
	c := &Controller{
		id:     uuid.NewString(),
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "session")),
		state:  StateIdle,
		voice:  cfg.Voice,
		tracer: otel.Tracer("github.com/bloomlabs/bloom-core/session"),
		meter:  otel.Meter("github.com/bloomlabs/bloom-core/session"),
	}
	if err := c.initMetrics(); err != nil {
		c.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return c
}

func (c *Controller) initMetrics() error {
	var err error
	if c.turnsTotal, err = c.meter.Int64Counter("bloom.session.turns", metric.WithDescription("Completed conversation turns")); err != nil {
		return err
	}
	if c.fallbackTotal, err = c.meter.Int64Counter("bloom.session.fallbacks", metric.WithDescription("Turns answered with the fallback reply")); err != nil {
		return err
	}
	if c.degradedTotal, err = c.meter.Int64Counter("bloom.session.degraded", metric.WithDescription("Turns delivered text-only after synthesis failure")); err != nil {
		return err
	}
	c.turnSeconds, err = c.meter.Float64Histogram("bloom.session.turn_seconds", metric.WithDescription("Wall time per turn"))
	return err
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a read-only snapshot of the conversation so far.
func (c *Controller) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.history))
	copy(out, c.history)
	return out
}

// Voice returns the current synthesis voice.
func (c *Controller) Voice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

// SetVoice switches the synthesis voice. Only allowed while idle so a voice
// never changes mid-turn.
func (c *Controller) SetVoice(voice string) error {
	if !validVoice(voice) {
		return ErrUnknownVoice
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrNotIdle
	}
	c.voice = voice
	return nil
}

func validVoice(voice string) bool {
	for _, v := range Voices {
		if v == voice {
			return true
		}
	}
	return false
}

// PendingTranscript returns the latest in-progress recognition guess. Only
// meaningful while listening.
func (c *Controller) PendingTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// StartCapture begins listening. A no-op unless idle; capture errors
// (permission, device) are surfaced and leave the session idle. The
// listening state is claimed under the same lock as the idle check, before
// the backend starts, so nothing else can enter the session while a slow
// backend is still coming up; a failed start rolls back to idle.
func (c *Controller) StartCapture(ctx context.Context) error {
	if c.deps.Capturer == nil {
		return ErrCaptureUnavailable
	}
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateListening
	c.mu.Unlock()

	if err := c.deps.Capturer.Start(ctx, c.onPartial); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}
	c.notifyState(StateIdle, StateListening)
	return nil
}

// StopCapture ends listening and returns the final transcript. An empty
// transcript is a valid result. The text is not auto-submitted. A no-op
// unless listening, but a backend found active outside listening is still
// torn down so the microphone can never wedge.
func (c *Controller) StopCapture() (string, error) {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()

	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		if c.deps.Capturer != nil {
			if _, err := c.deps.Capturer.Stop(); err == nil {
				c.logger.Warn("capture backend was active outside listening, stopped it")
			}
		}
		return "", nil
	}
	c.mu.Unlock()

	text, err := c.deps.Capturer.Stop()

	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
	c.transition(StateIdle)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Controller) onPartial(text string) {
	c.mu.Lock()
	c.pending = text
	c.mu.Unlock()
	c.publish(protocol.SubjectTranscriptPartial, protocol.PartialTranscript{
		SessionID: c.id,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Submit runs one full conversation turn: append the user's utterance,
// generate a reply, then synthesize and play it when audio is enabled. It
// returns the agent turn, which may be the fallback reply or a degraded
// text-only reply. Submissions while a turn is in flight are dropped with
// ErrSessionBusy and never touch the history.
func (c *Controller) Submit(ctx context.Context, text string) (Turn, error) {
	utterance := strings.TrimSpace(text)
	if utterance == "" {
		return Turn{}, ErrEmptyUtterance
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Turn{}, ErrSessionBusy
	}
	promptHistory := c.historyWindowLocked()
	userTurn := Turn{Speaker: SpeakerUser, Text: utterance, At: time.Now().UTC()}
	c.history = append(c.history, userTurn)
	prev := c.state
	c.state = StateThinking
	c.mu.Unlock()

	c.notifyState(prev, StateThinking)
	c.notifyTurn(userTurn)

	started := time.Now()
	turnCtx, span := c.tracer.Start(ctx, "session.turn",
		trace.WithAttributes(attribute.String("session.id", c.id)))

	reply, genErr := c.generateReply(turnCtx, promptHistory, utterance)
	reply = strings.TrimSpace(reply)
	fallback := genErr != nil || reply == ""
	if genErr != nil {
		c.logger.Warn("reply generation failed", slogError(genErr))
	} else if reply == "" {
		c.logger.Warn("reply generation returned empty text")
	}
	if fallback {
		reply = FallbackReply
		if c.fallbackTotal != nil {
			c.fallbackTotal.Add(turnCtx, 1)
		}
	}

	// The reply enters the history as soon as generation resolves; the
	// degraded flag is updated in place if synthesis fails afterwards.
	agentTurn := Turn{Speaker: SpeakerAgent, Text: reply, At: time.Now().UTC()}
	c.mu.Lock()
	c.history = append(c.history, agentTurn)
	turnIdx := len(c.history) - 1
	c.mu.Unlock()

	if !fallback && c.deps.Synthesizer != nil && c.deps.Output != nil {
		c.transition(StateSpeaking)
		container, err := c.synthesizeReply(turnCtx, reply)
		if err != nil {
			c.logger.Warn("speech synthesis failed, keeping text reply", slogError(err))
			if c.degradedTotal != nil {
				c.degradedTotal.Add(turnCtx, 1)
			}
			agentTurn.Degraded = true
			c.mu.Lock()
			c.history[turnIdx].Degraded = true
			c.mu.Unlock()
		} else if err := c.deps.Output.Play(turnCtx, container); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("playback failed", slogError(err))
		}
	}

	span.SetAttributes(
		attribute.Bool("turn.degraded", agentTurn.Degraded),
		attribute.Bool("turn.fallback", fallback),
	)
	span.End()

	c.notifyTurn(agentTurn)
	c.transition(StateIdle)

	if c.turnsTotal != nil {
		c.turnsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("degraded", agentTurn.Degraded)))
	}
	if c.turnSeconds != nil {
		c.turnSeconds.Record(ctx, time.Since(started).Seconds())
	}

	c.persistTurns(userTurn, agentTurn)
	return agentTurn, nil
}

func (c *Controller) generateReply(ctx context.Context, history []generate.Message, utterance string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.GenerateTimeout)*time.Millisecond)
	defer cancel()

	req := generate.Request{History: history, Utterance: utterance}
	if c.deps.Wellness != nil {
		snapshot := c.deps.Wellness.Snapshot()
		req.Context = &snapshot
	}
	return c.deps.Generator.Generate(genCtx, req)
}

// synthesizeReply produces a framed container for the reply. A framing
// failure means the backend handed back malformed audio and is treated the
// same as a synthesis failure.
func (c *Controller) synthesizeReply(ctx context.Context, reply string) ([]byte, error) {
	synCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.SynthesizeTimeout)*time.Millisecond)
	defer cancel()

	result, err := c.deps.Synthesizer.Synthesize(synCtx, synth.Request{Text: reply, Voice: c.Voice()})
	if err != nil {
		return nil, err
	}
	return wavfmt.Frame(result.PCM, result.Channels, result.SampleRate, result.BitDepth)
}

// historyWindowLocked maps the most recent turns into the generator's
// message shape. Caller holds c.mu.
func (c *Controller) historyWindowLocked() []generate.Message {
	turns := c.history
	if max := c.cfg.MaxHistoryTurns; max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	msgs := make([]generate.Message, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Speaker == SpeakerAgent {
			role = "model"
		}
		msgs = append(msgs, generate.Message{Role: role, Text: t.Text})
	}
	return msgs
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	prev := c.state
	c.state = to
	c.mu.Unlock()
	if prev != to {
		c.notifyState(prev, to)
	}
}

func (c *Controller) notifyState(from, to State) {
	c.publish(protocol.SubjectSessionState, protocol.SessionEvent{
		SessionID: c.id,
		Kind:      protocol.EventKindState,
		State:     string(to),
		PrevState: string(from),
		Timestamp: time.Now().UTC(),
	})
}

func (c *Controller) notifyTurn(t Turn) {
	c.publish(protocol.SubjectSessionTurn, protocol.SessionEvent{
		SessionID: c.id,
		Kind:      protocol.EventKindTurn,
		Speaker:   t.Speaker,
		Text:      t.Text,
		Degraded:  t.Degraded,
		Timestamp: t.At,
	})
}

func (c *Controller) publish(subject string, payload any) {
	if c.deps.Publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("failed to marshal session event", slogError(err))
		return
	}
	if err := c.deps.Publisher.Publish(subject, data); err != nil {
		c.logger.Warn("failed to publish session event", slogError(err))
	}
}

// persistTurns writes the completed turns in the background. Storage is
// best-effort: the live session never depends on it.
func (c *Controller) persistTurns(turns ...Turn) {
	if c.deps.Store == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.deps.Store.EnsureSession(ctx, c.id, c.Voice()); err != nil {
			c.logger.Warn("failed to persist session", slogError(err))
			return
		}
		for _, t := range turns {
			if err := c.deps.Store.AppendTurn(ctx, c.id, t.Speaker, t.Text, t.Degraded); err != nil {
				c.logger.Warn("failed to persist turn", slogError(err))
			}
		}
	}()
}

// Close stops playback and any active capture, then waits for background
// persistence to drain.
func (c *Controller) Close() {
	if c.deps.Output != nil {
		c.deps.Output.Stop()
	}
	c.captureMu.Lock()
	if c.deps.Capturer != nil {
		if _, err := c.deps.Capturer.Stop(); err != nil && !errors.Is(err, capture.ErrNotActive) {
			c.logger.Warn("failed to stop capture on close", slogError(err))
		}
	}
	c.captureMu.Unlock()
	c.wg.Wait()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
