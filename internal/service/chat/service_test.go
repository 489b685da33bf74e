package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/tuft-client/internal/model/chat"
	chat "github.com/zhouzirui/tuft-client/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, map[string]any{"purpose": "conversation"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.Metadata["purpose"] != "conversation" {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceTranscriptOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, nil)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	for _, content := range []string{"こんにちは", "元気だよ"} {
		saved, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Sender: "user", Content: content})
		if err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
		if saved.ID == "" || saved.CreatedAt.IsZero() {
			t.Fatalf("saved message missing id or timestamp: %+v", saved)
		}
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 || transcript[0].Content != "こんにちは" || transcript[1].Content != "元気だよ" {
		t.Fatalf("unexpected transcript: %+v", transcript)
	}

	// the returned slice is a copy
	transcript[0].Content = "changed"
	again, _ := svc.LoadTranscript(ctx, session.ID)
	if again[0].Content != "こんにちは" {
		t.Fatalf("transcript was mutated through the returned slice")
	}
}

func TestServiceSaveMessageErrors(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.SaveMessage(ctx, model.Message{SessionID: "missing", Content: "hi"}); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	session, _ := svc.CreateSession(ctx, nil)
	if _, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID}); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}
