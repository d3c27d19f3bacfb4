// Package sse streams vault change notifications to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	clientBuffer = 64

	// EventGraphUpdated tells clients to refetch a vault's link graph.
	EventGraphUpdated = "graph.updated"
)

// heartbeat is how often an idle stream gets a comment line so proxies keep it open.
var heartbeat = 25 * time.Second

// Event is one SSE message. Vault scopes delivery: clients subscribed to a
// different vault do not receive it. An empty Vault reaches everyone.
type Event struct {
	Type  string `json:"type"`
	Vault string `json:"-"`
	Data  any    `json:"data"`
}

// NoteEvent is the payload of every note.* event.
type NoteEvent struct {
	Vault string `json:"vault"`
	ID    string `json:"id"`
}

// noteEventTypes maps store event kinds to SSE event names.
var noteEventTypes = map[string]string{
	"created": "note.created",
	"updated": "note.updated",
	"deleted": "note.deleted",
	"renamed": "note.renamed",
}

type subscription struct {
	ch    chan []byte
	vault string
}

type countReq struct {
	vault string
	resp  chan int
}

// Broker fans events out to connected clients.
//
// A single goroutine owns the client set and the per-vault graph throttle;
// public methods talk to it over channels.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countCh       chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one graph.updated per vault
// every graphThrottle. A non-positive value means two seconds.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countCh:       make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.loop()
	return b
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), event.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastGraph := make(map[string]time.Time)

	deliver := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}
		for ch, vault := range clients {
			if vault != "" && event.Vault != "" && vault != event.Vault {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall every other stream.
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

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.vault

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			deliver(event)
			if _, isNote := noteTypes[event.Type]; !isNote {
				continue
			}
			now := time.Now()
			if now.Sub(lastGraph[event.Vault]) >= b.graphMin {
				lastGraph[event.Vault] = now
				deliver(Event{Type: EventGraphUpdated, Vault: event.Vault, Data: map[string]string{"vault": event.Vault}})
			}

		case req := <-b.countCh:
			n := 0
			for _, vault := range clients {
				if req.vault == "" || vault == req.vault {
					n++
				}
			}
			req.resp <- n
		}
	}
}

// noteTypes is the set of SSE names in noteEventTypes.
var noteTypes = func() map[string]struct{} {
	m := make(map[string]struct{}, len(noteEventTypes))
	for _, t := range noteEventTypes {
		m[t] = struct{}{}
	}
	return m
}()

// Close stops the broker and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for vault ("" for all vaults) and returns its
// channel. After Close the channel comes back already closed.
func (b *Broker) Subscribe(vault string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, vault: vault}:
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

// ClientCount returns the number of clients that would receive events for
// vault. An empty vault counts every client.
func (b *Broker) ClientCount(vault string) int {
	if b.closed.Load() {
		return 0
	}
	req := countReq{vault: vault, resp: make(chan int, 1)}
	select {
	case b.countCh <- req:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-req.resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for delivery. Note events also trigger a throttled
// graph.updated for their vault.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes a note change. Unknown kinds are dropped. Its
// signature matches the note store's notifier.
func (b *Broker) PublishNoteEvent(kind, vault, id string) {
	typ, ok := noteEventTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Vault: vault, Data: NoteEvent{Vault: vault, ID: id}})
}

// ServeHTTP streams events to one client (GET /events). The optional vault
// query parameter limits the stream to that vault.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("vault"))
	defer b.Unsubscribe(ch)

	tick := time.NewTicker(heartbeat)
	defer tick.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
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
