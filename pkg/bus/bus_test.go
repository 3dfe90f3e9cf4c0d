package bus

import (
	"context"
	"testing"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	m := NewMemory()
	received := make(chan string, 1)
	_, err := m.Subscribe(CategoryGoalRequested, func(ctx context.Context, payload []byte) error {
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := m.Publish(context.Background(), CategoryGoalRequested, map[string]string{"uniqueName": "build"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-received:
		if got == "" {
			t.Fatal("expected non-empty payload")
		}
	default:
		t.Fatal("handler was not invoked synchronously")
	}
}

func TestMemoryUnsubscribe(t *testing.T) {
	m := NewMemory()
	calls := 0
	unsub, _ := m.Subscribe(CategoryGoalCompleted, func(ctx context.Context, payload []byte) error {
		calls++
		return nil
	})
	_ = m.Publish(context.Background(), CategoryGoalCompleted, struct{}{})
	if err := unsub(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = m.Publish(context.Background(), CategoryGoalCompleted, struct{}{})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (unsubscribe should stop delivery)", calls)
	}
}
