package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func drain(ch chan []byte, wait time.Duration) []string {
	var out []string
	timeout := time.After(wait)
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-timeout:
			return out
		}
	}
}

func count(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsubscribe")
	}
}

func TestPublishNoteEvent_Payload(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "n-1", "Untitled Note")

	msgs := drain(ch, 100*time.Millisecond)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages: %q", len(msgs), msgs)
	}
	if !strings.HasPrefix(msgs[0], "id: 1\nevent: note.created\n") {
		t.Errorf("unexpected framing %q", msgs[0])
	}
	if !strings.Contains(msgs[0], `"id":"n-1"`) || !strings.Contains(msgs[0], `"title":"Untitled Note"`) {
		t.Errorf("missing note ref in %q", msgs[0])
	}
	if count(msgs, TypeListUpdated) != 1 {
		t.Errorf("expected list.updated, got %q", msgs)
	}
}

func TestPublishNoteEvent_ListThrottle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBroker(500*time.Millisecond, WithClock(clock))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a", "")
	b.PublishNoteEvent("updated", "a", "")
	msgs := drain(ch, 100*time.Millisecond)
	if count(msgs, TypeNoteCreated)+count(msgs, TypeNoteUpdated) != 2 {
		t.Errorf("note events in %q", msgs)
	}
	if count(msgs, TypeListUpdated) != 1 {
		t.Errorf("list events = %d, want 1 (throttled)", count(msgs, TypeListUpdated))
	}

	clock.Advance(500 * time.Millisecond)
	b.PublishNoteEvent("deleted", "a", "")
	msgs = drain(ch, 100*time.Millisecond)
	if count(msgs, TypeNoteDeleted) != 1 || count(msgs, TypeListUpdated) != 1 {
		t.Errorf("after throttle window: %q", msgs)
	}
}

func TestPublishNoteEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("renamed", "a", "")
	if msgs := drain(ch, 50*time.Millisecond); len(msgs) != 0 {
		t.Errorf("unexpected messages %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeNoteUpdated, Data: NoteRef{ID: "x"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: TypeNoteUpdated})
	b.PublishNoteEvent("updated", "x", "")
	if sub := b.Subscribe(); sub == nil {
		t.Error("Subscribe after close returned nil")
	}
}
