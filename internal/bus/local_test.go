package bus

import (
	"context"
	"testing"
	"time"

	"bookmarksync/internal/domain"
)

func receive(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
	}
	return nil
}

func TestLocalFanOut(t *testing.T) {
	b := NewLocal(nil)
	defer b.Close()

	s1, _ := b.Subscribe("t")
	s2, _ := b.Subscribe("t")
	other, _ := b.Subscribe("other")

	if err := b.Publish(context.Background(), "t", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, s := range []Subscription{s1, s2} {
		if got := string(receive(t, s)); got != "hello" {
			t.Errorf("got %q, want hello", got)
		}
	}

	select {
	case msg := <-other.C():
		t.Errorf("other topic received %q", msg)
	default:
	}
}

func TestLocalPayloadIsCopied(t *testing.T) {
	b := NewLocal(nil)
	defer b.Close()
	sub, _ := b.Subscribe("t")

	payload := []byte("abc")
	b.Publish(context.Background(), "t", payload)
	payload[0] = 'X'

	if got := string(receive(t, sub)); got != "abc" {
		t.Errorf("subscriber saw publisher mutation: %q", got)
	}
}

func TestLocalDown(t *testing.T) {
	b := NewLocal(nil)
	defer b.Close()
	sub, _ := b.Subscribe("t")

	b.SetDown(true)
	err := b.Publish(context.Background(), "t", []byte("x"))
	if !domain.IsConnection(err) {
		t.Fatalf("expected ConnectionError while down, got %v", err)
	}

	b.SetDown(false)
	if err := b.Publish(context.Background(), "t", []byte("y")); err != nil {
		t.Fatalf("Publish after recovery: %v", err)
	}
	if got := string(receive(t, sub)); got != "y" {
		t.Errorf("got %q, want y", got)
	}
}

func TestLocalSubscriptionClose(t *testing.T) {
	b := NewLocal(nil)
	defer b.Close()
	sub, _ := b.Subscribe("t")

	if b.SubscriberCount("t") != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", b.SubscriberCount("t"))
	}
	sub.Close()
	sub.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed")
	}
	if b.SubscriberCount("t") != 0 {
		t.Errorf("SubscriberCount = %d after close", b.SubscriberCount("t"))
	}
}

func TestLocalCloseClosesSubscriptions(t *testing.T) {
	b := NewLocal(nil)
	sub, _ := b.Subscribe("t")
	b.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("channel should be closed after bus Close")
	}
	if err := b.Publish(context.Background(), "t", nil); !domain.IsConnection(err) {
		t.Errorf("Publish on closed bus = %v, want ConnectionError", err)
	}
}
