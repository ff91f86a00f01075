package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryMarkSeen(t *testing.T) {
	s := NewMemory(time.Hour)
	ctx := context.Background()

	first, err := s.MarkSeen(ctx, "update-1")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if !first {
		t.Fatalf("first sighting should report true")
	}

	again, err := s.MarkSeen(ctx, "update-1")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if again {
		t.Fatalf("replay should report false")
	}

	other, err := s.MarkSeen(ctx, "update-2")
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if !other {
		t.Fatalf("distinct id should report true")
	}
}

func TestMemoryExpiry(t *testing.T) {
	s := NewMemory(time.Hour)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if first, _ := s.MarkSeen(context.Background(), "update-1"); !first {
		t.Fatalf("first sighting should report true")
	}

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	if again, _ := s.MarkSeen(context.Background(), "update-1"); !again {
		t.Fatalf("expired id should count as a first sighting again")
	}
}
