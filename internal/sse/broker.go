// Package sse implements the Server-Sent Events stream that tells open book
// pages to reload after a rebuild.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventRebuilt     = "site.rebuilt"
	EventBuildFailed = "build.failed"
)

const (
	clientBuffer     = 64
	defaultKeepAlive = 15 * time.Second
	// retryMillis is the reconnect delay suggested to browsers. A restarted
	// server is picked up again within it.
	retryMillis = 1000
)

// BuildResult describes one finished rebuild.
type BuildResult struct {
	Checksum string
	Pages    int
	Err      error
}

// hub is the state owned by the broker loop.
type hub struct {
	clients  map[chan []byte]struct{}
	checksum string // last site announced to clients
}

func (h *hub) send(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; it reloads on the next event anyway.
		}
	}
}

// Broker fans build results out to connected pages.
//
// All state lives in hub and is touched only by the loop goroutine; callers
// hand it operations over ops.
type Broker struct {
	ops       chan func(*hub)
	stopCh    chan struct{}
	stopped   chan struct{}
	closed    atomic.Bool
	keepAlive time.Duration
}

// NewBroker creates a broker. initialChecksum identifies the site already
// being served; a rebuild that reproduces it is not announced.
func NewBroker(initialChecksum string) *Broker {
	b := &Broker{
		ops:       make(chan func(*hub)),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
		keepAlive: defaultKeepAlive,
	}
	go b.loop(&hub{clients: make(map[chan []byte]struct{}), checksum: initialChecksum})
	return b
}

func (b *Broker) loop(h *hub) {
	defer close(b.stopped)
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do runs op on the loop. It reports false once the broker is closed.
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

// Close stops the loop and ends every open stream. It is safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed when the
// client unsubscribes or the broker closes.
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
	n := make(chan int, 1)
	if !b.do(func(h *hub) { n <- len(h.clients) }) {
		return 0
	}
	return <-n
}

// PublishBuild announces a rebuild: a reload when the site changed, or the
// build error when it failed.
func (b *Broker) PublishBuild(res BuildResult) {
	b.do(func(h *hub) {
		if res.Err != nil {
			h.send(EventBuildFailed, map[string]string{"error": res.Err.Error()})
			return
		}
		if res.Checksum == h.checksum {
			return
		}
		h.checksum = res.Checksum
		h.send(EventRebuilt, map[string]any{"checksum": res.Checksum, "pages": res.Pages})
	})
}

// ServeHTTP streams events to one page (GET /api/events). Comment lines are
// sent every keepAlive so idle connections are not dropped by proxies.
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
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
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
