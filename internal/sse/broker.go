// Package sse implements a Server-Sent Events broker that pushes routing and
// registry changes to admin dashboards.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types.
const (
	EventRoutingPersisted = "routing.persisted"
	EventRegistrySynced   = "registry.synced"
	EventMatrixUpdated    = "matrix.updated"
)

// heartbeatInterval keeps idle streams open through proxies.
const heartbeatInterval = 25 * time.Second

// subscription is one connected client and the event types it asked for.
// An empty filter receives everything.
type subscription struct {
	ch    chan []byte
	types map[string]struct{}
}

func (s *subscription) wants(eventType string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

type publishReq struct {
	event  Event
	change bool
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the subscriptions, the event sequence and the
// matrix.updated throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	matrixMin time.Duration
	heartbeat time.Duration

	subscribeCh   chan *subscription
	unsubscribeCh chan chan []byte
	publishCh     chan publishReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given matrix.updated throttle interval.
func NewBroker(matrixThrottle time.Duration) *Broker {
	if matrixThrottle <= 0 {
		matrixThrottle = 2 * time.Second
	}

	b := &Broker{
		matrixMin:     matrixThrottle,
		heartbeat:     heartbeatInterval,
		subscribeCh:   make(chan *subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan publishReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func frame(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[chan []byte]*subscription)
	var seq uint64
	var lastMatrix time.Time

	broadcast := func(event Event) {
		seq++
		raw, err := frame(seq, event)
		if err != nil {
			return
		}
		for _, s := range subs {
			if !s.wants(event.Type) {
				continue
			}
			select {
			case s.ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case s := <-b.subscribeCh:
			subs[s.ch] = s

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case req := <-b.publishCh:
			broadcast(req.event)
			if !req.change {
				continue
			}
			now := time.Now()
			if now.Sub(lastMatrix) >= b.matrixMin {
				lastMatrix = now
				broadcast(Event{Type: EventMatrixUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. With no types the
// client receives every event; otherwise only the listed types.
func (b *Broker) Subscribe(types ...string) chan []byte {
	s := &subscription{ch: make(chan []byte, 64)}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	if b.closed.Load() {
		close(s.ch)
		return s.ch
	}

	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(s.ch)
	}

	return s.ch
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

func (b *Broker) enqueue(req publishReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- req:
	case <-b.stopped:
	}
}

// Publish sends an event to all interested clients.
func (b *Broker) Publish(event Event) {
	b.enqueue(publishReq{event: event})
}

// PublishChange publishes a data-changing event followed by a throttled
// matrix.updated event, so dashboards refetch the matrix at most once per
// throttle interval.
func (b *Broker) PublishChange(event Event) {
	b.enqueue(publishReq{event: event, change: true})
}

// RoutingPersisted announces persisted routing edges for one artifact.
func (b *Broker) RoutingPersisted(sourceID, artifactID string, edges int) {
	b.PublishChange(Event{Type: EventRoutingPersisted, Data: map[string]any{
		"sourceId":   sourceID,
		"artifactId": artifactID,
		"edges":      edges,
	}})
}

// RegistrySynced announces a completed registry sync.
func (b *Broker) RegistrySynced(checksum string, upserted, removed int) {
	b.PublishChange(Event{Type: EventRegistrySynced, Data: map[string]any{
		"checksum": checksum,
		"upserted": upserted,
		"removed":  removed,
	}})
}

func parseTypes(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional
// types query parameter is a comma-separated event type filter.
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

	ch := b.Subscribe(parseTypes(r.URL.Query().Get("types"))...)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
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
