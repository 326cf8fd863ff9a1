// Package sse implements a Server-Sent Events broker for entry and link
// change notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Entry change kinds, as reported by the index watcher.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Link operations carried by links.updated.
const (
	LinkAdded   = "added"
	LinkRemoved = "removed"
)

const (
	clientBuffer = 64
	queueSize    = 256
)

// Broker fans events out to connected SSE clients.
//
// One goroutine owns the hub. Subscription changes reach it as closures on
// ops and events arrive through a buffered queue, so nothing is locked.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration

	ops    chan func(*hub)
	events chan envelope

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// envelope is a queued event. Store changes also bump the graph.
type envelope struct {
	event  Event
	change bool
}

type hub struct {
	clients   map[chan []byte]struct{}
	seq       uint64
	lastGraph time.Time
}

// NewBroker starts a broker that emits graph.updated at most once per
// graphThrottle. Non-positive values mean two seconds.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin:  graphThrottle,
		keepAlive: 30 * time.Second,
		ops:       make(chan func(*hub)),
		events:    make(chan envelope, queueSize),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.stop:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		case env := <-b.events:
			h.broadcast(env.event)
			if env.change && time.Since(h.lastGraph) >= b.graphMin {
				h.lastGraph = time.Now()
				h.broadcast(Event{Type: "graph.updated", Data: map[string]string{}})
			}
		}
	}
}

// broadcast numbers ev and offers it to every client. Clients with a full
// buffer miss it.
func (h *hub) broadcast(ev Event) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	h.seq++
	msg := fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", h.seq, ev.Type, payload)
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// do runs op on the broker goroutine. It reports false once the broker
// is closed.
func (b *Broker) do(op func(*hub)) bool {
	if b.closed.Load() {
		return false
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

func (b *Broker) enqueue(env envelope) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- env:
	case <-b.stopped:
	}
}

// Close stops the broker and closes every client channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close, and is already closed if the broker is.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if !b.do(func(h *hub) { h.clients[ch] = struct{}{} }) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	return <-resp
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.enqueue(envelope{event: event})
}

// PublishEntryEvent publishes entry.<kind> for id and a throttled
// graph.updated event. Unknown kinds are ignored.
func (b *Broker) PublishEntryEvent(kind, id string) {
	switch kind {
	case KindCreated, KindUpdated, KindDeleted:
	default:
		return
	}
	b.enqueue(envelope{event: Event{Type: "entry." + kind, Data: map[string]string{"id": id}}, change: true})
}

// PublishLinkEvent publishes links.updated for a link added or removed
// between from and to, and a throttled graph.updated event.
func (b *Broker) PublishLinkEvent(op, from, to string) {
	data := map[string]string{"op": op, "from": from, "to": to}
	b.enqueue(envelope{event: Event{Type: "links.updated", Data: data}, change: true})
}

// ServeHTTP streams events to one client until its request is done.
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

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			// comment lines keep idle proxies from dropping the stream
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
