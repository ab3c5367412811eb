package runtime

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bloomlabs/bloom-core/internal/capture"
	"github.com/bloomlabs/bloom-core/internal/chat"
	"github.com/bloomlabs/bloom-core/internal/session"
	"github.com/bloomlabs/bloom-core/internal/wellness"
)

func (r *Runtime) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/session/message", r.handleSubmitMessage)
	mux.HandleFunc("GET /v1/session", r.handleSessionState)
	mux.HandleFunc("POST /v1/session/capture/start", r.handleCaptureStart)
	mux.HandleFunc("POST /v1/session/capture/stop", r.handleCaptureStop)
	mux.HandleFunc("PUT /v1/session/voice", r.handleSetVoice)
	mux.HandleFunc("GET /v1/session/voices", r.handleListVoices)
	mux.HandleFunc("GET /v1/session/transcript", r.handleStoredTranscript)
	mux.HandleFunc("GET /v1/wellness", r.handleGetWellness)
	mux.HandleFunc("PUT /v1/wellness", r.handleSetWellness)
	mux.HandleFunc("POST /v1/chat/messages", r.handlePostChatMessage)
	mux.HandleFunc("GET /v1/chat/messages", r.handleListChatMessages)
	mux.HandleFunc("DELETE /v1/chat/messages/{id}", r.handleDeleteChatMessage)
}

type submitRequest struct {
	Text string `json:"text"`
}

func (r *Runtime) handleSubmitMessage(w http.ResponseWriter, req *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, err := r.controller.Submit(req.Context(), body.Text)
	switch {
	case errors.Is(err, session.ErrEmptyUtterance):
		writeError(w, http.StatusBadRequest, "utterance must not be empty")
		return
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, "a turn is already in progress")
		return
	case err != nil:
		r.logger.Error("submit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

type sessionView struct {
	ID                string         `json:"id"`
	State             string         `json:"state"`
	Voice             string         `json:"voice"`
	PendingTranscript string         `json:"pending_transcript,omitempty"`
	History           []session.Turn `json:"history"`
}

func (r *Runtime) handleSessionState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionView{
		ID:                r.controller.ID(),
		State:             string(r.controller.State()),
		Voice:             r.controller.Voice(),
		PendingTranscript: r.controller.PendingTranscript(),
		History:           r.controller.History(),
	})
}

func (r *Runtime) handleCaptureStart(w http.ResponseWriter, req *http.Request) {
	err := r.controller.StartCapture(req.Context())
	switch {
	case errors.Is(err, session.ErrCaptureUnavailable):
		writeError(w, http.StatusNotImplemented, "capture is not enabled")
	case errors.Is(err, capture.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "microphone permission denied")
	case errors.Is(err, capture.ErrNoDevice):
		writeError(w, http.StatusServiceUnavailable, "no capture device available")
	case err != nil:
		r.logger.Error("capture start failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"state": string(r.controller.State())})
	}
}

func (r *Runtime) handleCaptureStop(w http.ResponseWriter, _ *http.Request) {
	text, err := r.controller.StopCapture()
	if err != nil {
		r.logger.Warn("capture stop failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "capture stop failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcript": text})
}

type voiceRequest struct {
	Voice string `json:"voice"`
}

func (r *Runtime) handleSetVoice(w http.ResponseWriter, req *http.Request) {
	var body voiceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := r.controller.SetVoice(body.Voice)
	switch {
	case errors.Is(err, session.ErrUnknownVoice):
		writeError(w, http.StatusBadRequest, "unknown voice")
	case errors.Is(err, session.ErrNotIdle):
		writeError(w, http.StatusConflict, "voice can only change while idle")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (r *Runtime) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"voices": session.Voices})
}

func (r *Runtime) handleStoredTranscript(w http.ResponseWriter, req *http.Request) {
	limit := queryInt(req, "limit", 100)
	turns, err := r.store.ListTurns(req.Context(), r.controller.ID(), limit)
	if err != nil {
		r.logger.Error("list stored turns failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (r *Runtime) handleGetWellness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.wellness.Snapshot())
}

func (r *Runtime) handleSetWellness(w http.ResponseWriter, req *http.Request) {
	var snap wellness.Snapshot
	if err := json.NewDecoder(req.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.wellness.Update(snap)
	w.WriteHeader(http.StatusNoContent)
}

type chatPostRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Body     string `json:"body"`
}

func (r *Runtime) handlePostChatMessage(w http.ResponseWriter, req *http.Request) {
	var body chatPostRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	msg, err := r.chat.Post(req.Context(), body.UserID, body.UserName, body.Body)
	var blocked *chat.BlockedError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	case errors.As(err, &blocked):
		writeError(w, http.StatusUnprocessableEntity, blocked.Reason)
		return
	case err != nil:
		r.logger.Error("chat post failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (r *Runtime) handleListChatMessages(w http.ResponseWriter, req *http.Request) {
	limit := queryInt(req, "limit", 100)
	msgs, err := r.chat.List(req.Context(), limit)
	if err != nil {
		r.logger.Error("chat list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (r *Runtime) handleDeleteChatMessage(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	userID := req.URL.Query().Get("user_id")
	if id == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "message id and user_id are required")
		return
	}
	err := r.chat.Delete(req.Context(), id, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "message not found")
	case err != nil:
		r.logger.Error("chat delete failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryInt(req *http.Request, key string, fallback int) int {
	if raw := req.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
