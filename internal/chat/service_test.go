package chat

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/bloomlabs/bloom-core/internal/config"
	"github.com/bloomlabs/bloom-core/internal/moderation"
	"github.com/bloomlabs/bloom-core/internal/protocol"
	"github.com/bloomlabs/bloom-core/internal/transcriptstore"
)

type capturePublisher struct {
	subjects []string
}

func (p *capturePublisher) Publish(subject string, _ []byte) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, string) (moderation.Verdict, error) {
	return moderation.Verdict{}, errors.New("classifier offline")
}

func newTestService(t *testing.T) (*Service, *capturePublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.StoreConfig{Path: filepath.Join(t.TempDir(), "bloom.db"), RetentionMode: "session"}
	store, err := transcriptstore.Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	pub := &capturePublisher{}
	return NewService(moderation.NewMockClassifier(), store, pub, logger), pub
}

func TestPostStoresAndBroadcasts(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Post(ctx, "u1", "Sam S.", "you are not alone in this")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != protocol.SubjectChatMessage {
		t.Fatalf("expected one broadcast on %s, got %v", protocol.SubjectChatMessage, pub.subjects)
	}

	msgs, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "you are not alone in this" {
		t.Fatalf("unexpected list result: %v", msgs)
	}
}

func TestPostBlockedMessageNeverStored(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	_, err := svc.Post(ctx, "u1", "Sam S.", "kys")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Reason == "" {
		t.Fatal("blocked error should carry a reason")
	}
	if len(pub.subjects) != 0 {
		t.Fatal("blocked message must not be broadcast")
	}

	msgs, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("blocked message leaked into the store: %v", msgs)
	}
}

func TestPostEmptyMessageRejected(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Post(context.Background(), "u1", "Sam S.", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestPostClassifierFailureBlocks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(failingClassifier{}, nil, nil, logger)

	_, err := svc.Post(context.Background(), "u1", "Sam S.", "hello")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError when classifier fails, got %v", err)
	}
}

func TestDeleteOnlyByAuthor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Post(ctx, "u1", "Sam S.", "rough day but hanging on")
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := svc.Delete(ctx, msg.ID, "u2"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected no rows for non-author delete, got %v", err)
	}
	if err := svc.Delete(ctx, msg.ID, "u1"); err != nil {
		t.Fatalf("author delete: %v", err)
	}

	msgs, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !msgs[0].Deleted || msgs[0].Body != "This message was deleted." {
		t.Fatalf("soft delete not applied: %+v", msgs[0])
	}
}
