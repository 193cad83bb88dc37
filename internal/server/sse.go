package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/lngraph/internal/events"
)

const (
	// sseHistorySize is the number of recent events kept for Last-Event-ID
	// replay.
	sseHistorySize = 256

	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is one published event as delivered to stream clients.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans published events out to connected GET /v1/events/stream
// clients and keeps a bounded history for reconnecting ones.
type sseHub struct {
	mu      sync.Mutex
	clients map[*sseClient]struct{}
	lastID  uint64
	history []sseEvent // oldest first, at most sseHistorySize
}

type sseClient struct {
	patterns []string // empty matches every topic
	ch       chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next ID to the event, records it and hands it to
// every matching client. Slow clients miss events rather than block.
func (h *sseHub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := sseEvent{ID: h.lastID, Topic: topic, Data: data}
	if len(h.history) == sseHistorySize {
		h.history = append(h.history[:0], h.history[1:]...)
	}
	h.history = append(h.history, evt)

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client and returns the retained events after
// lastID that it should be sent first. Registration and the history read
// happen under one lock so no event is missed or duplicated.
func (h *sseHub) subscribe(patterns []string, lastID uint64) (*sseClient, []sseEvent) {
	c := &sseClient{patterns: patterns, ch: make(chan sseEvent, 64)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var replay []sseEvent
	if lastID > 0 {
		for _, evt := range h.history {
			if evt.ID > lastID && c.matches(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	return c, replay
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *sseClient) matches(topic string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	for _, p := range c.patterns {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a NATS-style
// pattern: "*" matches one segment, a trailing ">" one or more.
func matchTopicPattern(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream handles GET /v1/events/stream. The optional ?topics=
// parameter is a comma-separated list of patterns.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var patterns []string
	for _, p := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.hub.subscribe(patterns, lastID)
	defer s.hub.unsubscribe(client)
	defer s.metrics.StreamClientConnected()()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range replay {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}

// streamPublisher forwards events to the configured publisher and mirrors
// them to stream clients.
type streamPublisher struct {
	next   events.Publisher
	hub    *sseHub
	logger *slog.Logger
}

func (p *streamPublisher) Publish(ctx context.Context, topic string, event any) error {
	if data, err := json.Marshal(event); err != nil {
		p.logger.Warn("marshal event for stream failed", "topic", topic, "err", err)
	} else {
		p.hub.broadcast(topic, data)
	}
	return p.next.Publish(ctx, topic, event)
}

func (p *streamPublisher) Close() error { return p.next.Close() }
