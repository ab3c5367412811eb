package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bloomlabs/bloom-core/internal/chat"
	"github.com/bloomlabs/bloom-core/internal/config"
	"github.com/bloomlabs/bloom-core/internal/generate"
	"github.com/bloomlabs/bloom-core/internal/moderation"
	"github.com/bloomlabs/bloom-core/internal/session"
	"github.com/bloomlabs/bloom-core/internal/transcriptstore"
	"github.com/bloomlabs/bloom-core/internal/wellness"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	storeCfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "bloom.db"), RetentionMode: "session"}
	store, err := transcriptstore.Open(context.Background(), storeCfg, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	r := &Runtime{cfg: cfg, logger: logger}
	r.store = store
	r.wellness = wellness.NewStore()
	r.controller = session.NewController(cfg.Session, session.Deps{
		Generator: generate.NewMockGenerator(),
		Wellness:  r.wellness,
		Store:     store,
	}, logger)
	r.chat = chat.NewService(moderation.NewMockClassifier(), store, nil, logger)
	return r
}

func serve(t *testing.T, r *Runtime, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	r.registerHandlers(mux)
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSubmitMessageEndpoint(t *testing.T) {
	r := newTestRuntime(t)

	rec := serve(t, r, http.MethodPost, "/v1/session/message", `{"text":"I feel anxious today"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"speaker":"agent"`) {
		t.Fatalf("expected agent turn in response: %s", rec.Body.String())
	}

	rec = serve(t, r, http.MethodPost, "/v1/session/message", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", rec.Code)
	}
}

func TestSessionStateEndpoint(t *testing.T) {
	r := newTestRuntime(t)
	rec := serve(t, r, http.MethodGet, "/v1/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"idle"`) {
		t.Fatalf("expected idle state: %s", rec.Body.String())
	}
}

func TestVoiceEndpoints(t *testing.T) {
	r := newTestRuntime(t)

	rec := serve(t, r, http.MethodPut, "/v1/session/voice", `{"voice":"Puck"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, r, http.MethodPut, "/v1/session/voice", `{"voice":"NotAVoice"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown voice, got %d", rec.Code)
	}

	rec = serve(t, r, http.MethodGet, "/v1/session/voices", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Algenib") {
		t.Fatalf("voice list missing: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCaptureEndpointsWithoutCapturer(t *testing.T) {
	r := newTestRuntime(t)
	rec := serve(t, r, http.MethodPost, "/v1/session/capture/start", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without capture backend, got %d", rec.Code)
	}
	rec = serve(t, r, http.MethodPost, "/v1/session/capture/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop should be a safe no-op, got %d", rec.Code)
	}
}

func TestWellnessEndpoints(t *testing.T) {
	r := newTestRuntime(t)

	rec := serve(t, r, http.MethodPut, "/v1/wellness", `{"mood":"Good","sleep_hours":7.5,"steps":8000,"name":"Sam"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = serve(t, r, http.MethodGet, "/v1/wellness", "")
	if !strings.Contains(rec.Body.String(), `"mood":"Good"`) {
		t.Fatalf("snapshot not applied: %s", rec.Body.String())
	}
}

func TestChatEndpoints(t *testing.T) {
	r := newTestRuntime(t)

	rec := serve(t, r, http.MethodPost, "/v1/chat/messages", `{"user_id":"u1","user_name":"Sam S.","body":"hang in there"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, r, http.MethodPost, "/v1/chat/messages", `{"user_id":"u1","user_name":"Sam S.","body":"kys"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blocked message, got %d", rec.Code)
	}

	rec = serve(t, r, http.MethodGet, "/v1/chat/messages", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hang in there") {
		t.Fatalf("list missing message: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, r, http.MethodDelete, "/v1/chat/messages/does-not-exist?user_id=u1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
