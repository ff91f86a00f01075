package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["chat_id"].(float64) != 77 {
			t.Errorf("expected chat_id 77, got %v", payload["chat_id"])
		}
		if _, ok := payload["reply_markup"]; !ok {
			t.Errorf("expected reply_markup in payload")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", false)
	kb := Keyboard{{{Text: "Finish", CallbackData: "finish:abc"}}}
	id, err := c.SendMessage(context.Background(), 77, "hello", kb)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected message id 42, got %d", id)
	}
}

func TestSendMessageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", false)
	_, err := c.SendMessage(context.Background(), 77, "hello", nil)
	if err == nil {
		t.Fatalf("expected error for ok=false response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected description in error, got %v", err)
	}
}

func TestSendMessageSkipMode(t *testing.T) {
	c := New("http://unused", "test-token", true)
	id, err := c.SendMessage(context.Background(), 77, "hello", nil)
	if err != nil {
		t.Fatalf("skip mode should not fail: %v", err)
	}
	if id == 0 {
		t.Fatalf("skip mode should return a message id")
	}
}

func TestAnswerCallback(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", false)
	if err := c.AnswerCallback(context.Background(), "cb-1", "saved"); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}
	if gotPath != "/bottest-token/answerCallbackQuery" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}
