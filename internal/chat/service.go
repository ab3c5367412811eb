// Package chat implements the community chat: messages pass the moderation
// gate, then are persisted and broadcast. Blocked messages are rejected with
// the classifier's reason and never stored.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloomlabs/bloom-core/internal/moderation"
	"github.com/bloomlabs/bloom-core/internal/protocol"
	"github.com/bloomlabs/bloom-core/internal/transcriptstore"
)

var (
	// ErrEmptyMessage rejects blank or whitespace-only bodies.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// BlockedError carries the moderation reason back to the caller.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("chat: message blocked: %s", e.Reason)
}

// Publisher is the subset of the bus connection the service needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Service struct {
	classifier moderation.Classifier
	store      *transcriptstore.Store
	pub        Publisher
	logger     *slog.Logger
	clock      func() time.Time
}

func NewService(classifier moderation.Classifier, store *transcriptstore.Store, pub Publisher, logger *slog.Logger) *Service {
	return &Service{
		classifier: classifier,
		store:      store,
		pub:        pub,
		logger:     logger.With(slog.String("component", "chat")),
		clock:      time.Now,
	}
}

// Post moderates, stores, and broadcasts one message. When the classifier
// itself fails the message is rejected rather than let through unchecked.
func (s *Service) Post(ctx context.Context, userID, userName, body string) (protocol.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return protocol.ChatMessage{}, ErrEmptyMessage
	}

	if s.classifier != nil {
		verdict, err := s.classifier.Classify(ctx, body, userID)
		if err != nil {
			s.logger.Warn("moderation call failed", slogError(err))
			return protocol.ChatMessage{}, &BlockedError{Reason: "moderation unavailable"}
		}
		if !verdict.Safe {
			return protocol.ChatMessage{}, &BlockedError{Reason: verdict.Reason}
		}
	}

	msg := protocol.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  userName,
		Body:      body,
		CreatedAt: s.clock().UTC(),
	}
	if s.store != nil {
		if err := s.store.InsertChatMessage(ctx, msg); err != nil {
			return protocol.ChatMessage{}, fmt.Errorf("store chat message: %w", err)
		}
	}
	s.broadcast(msg)
	return msg, nil
}

// List returns up to limit messages, oldest first.
func (s *Service) List(ctx context.Context, limit int) ([]protocol.ChatMessage, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListChatMessages(ctx, limit)
}

// Delete soft-deletes the author's own message.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if s.store == nil {
		return nil
	}
	return s.store.SoftDeleteChatMessage(ctx, id, userID)
}

func (s *Service) broadcast(msg protocol.ChatMessage) {
	if s.pub == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to marshal chat message", slogError(err))
		return
	}
	if err := s.pub.Publish(protocol.SubjectChatMessage, data); err != nil {
		s.logger.Warn("failed to publish chat message", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
