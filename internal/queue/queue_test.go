package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg := Message{Type: TypeChatUpdate, Body: []byte(`{"update_id":1}`)}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case got := <-out:
		if got.Type != TypeChatUpdate {
			t.Fatalf("expected type %q, got %q", TypeChatUpdate, got.Type)
		}
		if string(got.Body) != `{"update_id":1}` {
			t.Fatalf("unexpected body %q", got.Body)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeChatUpdate, Body: []byte(`{"data":"toggle:a:1|present"}`)}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Type != msg.Type {
		t.Fatalf("expected type %q, got %q", msg.Type, got.Type)
	}
	// Only the first separator splits; bodies may carry their own.
	if string(got.Body) != string(msg.Body) {
		t.Fatalf("expected body %q, got %q", msg.Body, got.Body)
	}
}
