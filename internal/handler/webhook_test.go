package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"classping/internal/config"
	"classping/internal/queue"
)

func webhookRouter(t *testing.T, secret string) (*gin.Engine, *queue.InMemory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	q := queue.NewInMemory(4)
	cfg := config.App{ChatWebhookSecret: secret}
	h := New(cfg, time.UTC, nil, nil, nil, nil, nil, nil, q, nil)
	r := gin.New()
	r.POST("/webhook/chat", h.ChatWebhook)
	return r, q
}

func TestChatWebhookQueuesUpdate(t *testing.T) {
	r, q := webhookRouter(t, "hunter2")
	body := `{"update_id":101,"callback_query":{"id":"cb","from":{"id":5},"data":"finish:abc"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/chat", strings.NewReader(body))
	req.Header.Set(webhookSecretHeader, "hunter2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	select {
	case msg := <-msgs:
		if msg.Type != queue.TypeChatUpdate {
			t.Fatalf("expected type %q, got %q", queue.TypeChatUpdate, msg.Type)
		}
		if string(msg.Body) != body {
			t.Fatalf("body was not passed through verbatim: %s", msg.Body)
		}
	case <-ctx.Done():
		t.Fatalf("update never reached the queue")
	}
}

func TestChatWebhookRejectsBadSecret(t *testing.T) {
	r, _ := webhookRouter(t, "hunter2")
	req := httptest.NewRequest(http.MethodPost, "/webhook/chat", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(webhookSecretHeader, "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestChatWebhookRejectsGarbage(t *testing.T) {
	r, _ := webhookRouter(t, "")
	for _, body := range []string{"not json", "{}", `{"update_id":0}`} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/chat", strings.NewReader(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestTokenEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.App{
		AdminSecret:   "letmein",
		JWTIssuer:     "classping",
		JWTSigningKey: "test-key",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	h := New(cfg, time.UTC, nil, nil, nil, nil, nil, nil, nil, nil)
	r := gin.New()
	r.POST("/auth/token", h.Token)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"secret":"letmein"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("expected tokens in response: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"secret":"wrong"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d", w.Code)
	}
}
