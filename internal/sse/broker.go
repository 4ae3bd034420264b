// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/tiddlyhal/internal/hal"
	"github.com/starford/tiddlyhal/internal/render"
	"github.com/starford/tiddlyhal/internal/storage"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// IndexUpdated is the throttled event announcing that collections changed.
const IndexUpdated = "index.updated"

type changeReq struct {
	kind  string
	entry storage.Entry
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + index throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	indexMin time.Duration
	uris     render.URIs
	logger   *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Change events carry HAL documents
// whose links are built under base; index.updated is sent at most once per
// indexThrottle.
func NewBroker(indexThrottle time.Duration, base string, logger *slog.Logger) *Broker {
	if indexThrottle <= 0 {
		indexThrottle = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		indexMin:      indexThrottle,
		uris:          render.NewURIs(base),
		logger:        logger,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastIndex time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			ev, err := changeEvent(b.uris, req.kind, req.entry)
			if err != nil {
				b.logger.Warn("sse: change event dropped",
					slog.String("path", req.entry.Path),
					slog.String("error", err.Error()))
				continue
			}
			broadcast(ev)

			now := time.Now()
			if now.Sub(lastIndex) >= b.indexMin {
				lastIndex = now
				broadcast(Event{Type: IndexUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
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

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange publishes a "<entity>.<kind>" event for a changed vault
// entry plus a throttled index.updated event. Unknown entries are ignored.
func (b *Broker) PublishChange(kind string, e storage.Entry) {
	if b.closed.Load() || e.Kind == storage.EntryUnknown {
		return
	}
	select {
	case b.changeCh <- changeReq{kind: kind, entry: e}:
	case <-b.stopped:
	}
}

// changeEvent renders a change as a HAL document linking the resource.
func changeEvent(uris render.URIs, kind string, e storage.Entry) (Event, error) {
	links := hal.NewLinkSet()
	var entity string
	var data map[string]any

	add := func(rel, href string) error {
		l, err := hal.NewLink(rel, href, nil)
		if err != nil {
			return err
		}
		links.Add(l)
		return nil
	}

	var err error
	switch e.Kind {
	case storage.EntryBag:
		entity = "bag"
		data = map[string]any{"name": e.Bag}
		err = add("self", uris.Container(render.BagRef(e.Bag)))
	case storage.EntryRecipe:
		entity = "recipe"
		data = map[string]any{"name": e.Name}
		err = add("self", uris.Container(render.RecipeRef(e.Name)))
	default:
		entity = "tiddler"
		ref := render.BagRef(e.Bag)
		data = map[string]any{"title": e.Name, "bag": e.Bag}
		err = add("self", uris.Tiddler(ref, e.Name))
		if err == nil {
			err = add(hal.Rel("bag"), uris.Container(ref))
		}
	}
	if err != nil {
		return Event{}, err
	}
	links.Add(hal.Curie)

	raw, err := hal.NewDocument(data, links).JSON()
	if err != nil {
		return Event{}, err
	}
	return Event{Type: entity + "." + kind, Data: json.RawMessage(raw)}, nil
}

// ServeHTTP is the SSE endpoint handler (GET /events).
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

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
