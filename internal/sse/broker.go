// Package sse streams note change notifications to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Event types emitted by the broker.
const (
	TypeNoteCreated = "note.created"
	TypeNoteUpdated = "note.updated"
	TypeNoteDeleted = "note.deleted"
	TypeListUpdated = "list.updated"
)

const (
	clientBuffer      = 64
	defaultListMin    = time.Second
	heartbeatInterval = 25 * time.Second
)

// Event is one message sent to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteRef identifies the note an event is about.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

type noteEvent struct {
	kind string
	ref  NoteRef
}

// Broker fans events out to SSE clients.
//
// A single event loop goroutine owns the subscriber set, the message sequence
// and the list.updated throttle; public methods talk to it over channels.
type Broker struct {
	listMin time.Duration
	clock   clockwork.Clock

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithClock sets the clock used by the list.updated throttle.
func WithClock(c clockwork.Clock) Option {
	return func(b *Broker) { b.clock = c }
}

// NewBroker starts a broker that emits list.updated at most once per listThrottle.
func NewBroker(listThrottle time.Duration, opts ...Option) *Broker {
	if listThrottle <= 0 {
		listThrottle = defaultListMin
	}
	b := &Broker{
		listMin:       listThrottle,
		clock:         clockwork.NewRealClock(),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq      uint64
		lastList time.Time
	)

	broadcast := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// slow client; drop rather than stall the loop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case ev := <-b.publishCh:
			broadcast(ev)

		case ne := <-b.noteEventCh:
			typ, ok := noteEventType(ne.kind)
			if !ok {
				continue
			}
			broadcast(Event{Type: typ, Data: ne.ref})

			now := b.clock.Now()
			if lastList.IsZero() || now.Sub(lastList) >= b.listMin {
				lastList = now
				broadcast(Event{Type: TypeListUpdated, Data: struct{}{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func noteEventType(kind string) (string, bool) {
	switch kind {
	case "created":
		return TypeNoteCreated, true
	case "updated":
		return TypeNoteUpdated, true
	case "deleted":
		return TypeNoteDeleted, true
	}
	return "", false
}

// Close stops the event loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client and returns its message channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends ev to all clients.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishNoteEvent announces a created, updated or deleted note, followed by a
// throttled list.updated. Unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, id, title string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEvent{kind: kind, ref: NoteRef{ID: id, Title: title}}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
