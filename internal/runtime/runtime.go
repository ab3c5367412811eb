// Package runtime assembles the daemon: telemetry, the event bus, the
// transcript store, the conversation session, the community chat, and the
// HTTP surface that exposes them.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bloomlabs/bloom-core/internal/bus"
	"github.com/bloomlabs/bloom-core/internal/capture"
	"github.com/bloomlabs/bloom-core/internal/chat"
	"github.com/bloomlabs/bloom-core/internal/config"
	"github.com/bloomlabs/bloom-core/internal/generate"
	"github.com/bloomlabs/bloom-core/internal/moderation"
	"github.com/bloomlabs/bloom-core/internal/natsserver"
	"github.com/bloomlabs/bloom-core/internal/playback"
	"github.com/bloomlabs/bloom-core/internal/session"
	"github.com/bloomlabs/bloom-core/internal/synth"
	"github.com/bloomlabs/bloom-core/internal/transcriptstore"
	"github.com/bloomlabs/bloom-core/internal/wellness"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer *http.Server
	embedded   *natsserver.EmbeddedServer
	busClient  *bus.Client
	store      *transcriptstore.Store
	wellness   *wellness.Store
	controller *session.Controller
	chat       *chat.Service

	telemetry *telemetry
	ready     atomic.Bool
	wg        sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every component and blocks until ctx is cancelled, then
// tears them down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := initTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetry = tel

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	r.embedded = embedded

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		r.embedded.Shutdown()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := transcriptstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		r.busClient.Close()
		r.embedded.Shutdown()
		return fmt.Errorf("failed to open transcript store: %w", err)
	}
	r.store = store

	r.wellness = wellness.NewStore()

	deps, err := r.buildSessionDeps()
	if err != nil {
		r.closeInfra()
		return err
	}
	r.controller = session.NewController(r.cfg.Session, deps, r.logger)

	classifier, err := r.buildClassifier()
	if err != nil {
		r.closeInfra()
		return err
	}
	r.chat = chat.NewService(classifier, r.store, r.busClient.Conn(), r.logger)

	mux := http.NewServeMux()
	r.registerHandlers(mux)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("/metrics", r.telemetry.metrics)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("generation_mode", r.cfg.Generation.Mode),
		slog.Bool("synthesis_enabled", r.cfg.Synthesis.Enabled),
		slog.Bool("capture_enabled", r.cfg.Capture.Enabled))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	r.controller.Close()
	r.closeInfra()

	if err := r.telemetry.Close(shutdownCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	return nil
}

func (r *Runtime) closeInfra() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("transcript store close error", slog.String("error", err.Error()))
		}
	}
	r.busClient.Close()
	r.embedded.Shutdown()
}

func (r *Runtime) buildSessionDeps() (session.Deps, error) {
	deps := session.Deps{
		Wellness:  r.wellness,
		Store:     r.store,
		Publisher: r.busClient.Conn(),
	}

	gen, err := r.buildGenerator()
	if err != nil {
		return session.Deps{}, err
	}
	deps.Generator = gen

	if r.cfg.Synthesis.Enabled {
		syn, err := r.buildSynthesizer()
		if err != nil {
			return session.Deps{}, err
		}
		player, err := r.buildPlayer()
		if err != nil {
			return session.Deps{}, err
		}
		deps.Synthesizer = syn
		deps.Output = playback.NewOutput(player)
	}

	if r.cfg.Capture.Enabled {
		capt, err := r.buildCapturer()
		if err != nil {
			return session.Deps{}, err
		}
		deps.Capturer = capt
	}

	return deps, nil
}

func (r *Runtime) buildGenerator() (generate.Generator, error) {
	cfg := r.cfg.Generation
	switch cfg.Mode {
	case "ollama":
		return generate.NewOllamaGenerator(cfg.Endpoint, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
	case "exec":
		return generate.NewExecGenerator(cfg.Command, cfg.MaxTokens, cfg.Temperature)
	default:
		return generate.NewMockGenerator(), nil
	}
}

func (r *Runtime) buildSynthesizer() (synth.Synthesizer, error) {
	cfg := r.cfg.Synthesis
	switch cfg.Mode {
	case "exec":
		return synth.NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels, cfg.BitDepth)
	default:
		return synth.NewMockSynth(cfg.SampleRate, cfg.Channels, cfg.BitDepth), nil
	}
}

func (r *Runtime) buildPlayer() (playback.Player, error) {
	cfg := r.cfg.Playback
	switch cfg.Mode {
	case "exec":
		return playback.NewExecPlayer(cfg.Command)
	default:
		return playback.NewMockPlayer(), nil
	}
}

func (r *Runtime) buildCapturer() (capture.Capturer, error) {
	cfg := r.cfg.Capture
	switch cfg.Mode {
	case "exec":
		return capture.NewExecCapturer(cfg)
	default:
		return capture.NewMockCapturer(), nil
	}
}

func (r *Runtime) buildClassifier() (moderation.Classifier, error) {
	cfg := r.cfg.Moderation
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Mode {
	case "ollama":
		return moderation.NewOllamaClassifier(cfg.Endpoint, cfg.Model), nil
	default:
		return moderation.NewMockClassifier(), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
