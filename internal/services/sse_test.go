package services

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSSEHubSubscribePublish(t *testing.T) {
	hub := NewSSEHub()
	a := hub.Subscribe("a")
	b := hub.Subscribe("b")

	hub.Publish(SuggestionEvent{TaskID: "task-001", Status: SuggestionReady, Count: 2})

	for name, ch := range map[string]<-chan SuggestionEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.TaskID != "task-001" || ev.Count != 2 {
				t.Errorf("%s got %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s did not receive the event", name)
		}
	}
}

func TestSSEHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewSSEHub()
	ch := hub.Subscribe("a")
	hub.Unsubscribe("a")

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	// second unsubscribe is harmless
	hub.Unsubscribe("a")
}

func TestSSEHubResubscribeReplacesChannel(t *testing.T) {
	hub := NewSSEHub()
	old := hub.Subscribe("a")
	fresh := hub.Subscribe("a")

	if _, ok := <-old; ok {
		t.Error("old channel should be closed")
	}
	hub.Publish(SuggestionEvent{TaskID: "t"})
	if ev := <-fresh; ev.TaskID != "t" {
		t.Errorf("unexpected event %+v", ev)
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestSSEHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewSSEHub()
	hub.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish(SuggestionEvent{TaskID: fmt.Sprintf("task-%d", i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestSSEHubConcurrentAccess(t *testing.T) {
	hub := NewSSEHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := fmt.Sprintf("c%d", i)
		go func() {
			defer wg.Done()
			hub.Subscribe(id)
			hub.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			hub.Publish(SuggestionEvent{TaskID: id})
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("expected all clients gone, got %d", hub.ClientCount())
	}
}
