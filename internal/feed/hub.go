// Package feed pushes ledger changes to WebSocket subscribers.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"equity-ledger/internal/domain"
	"equity-ledger/internal/observability"
)

// HubConfig configures subscriber connections.
type HubConfig struct {
	// SendBuffer is the number of pending messages per subscriber before new ones are dropped.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a subscriber may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// subscriber is one connected client. An empty company receives every change.
type subscriber struct {
	company string
	send    chan []byte
	conn    *websocket.Conn
}

// Hub fans ledger changes out to WebSocket subscribers. It implements
// ledger.Notifier; Notify never blocks, a slow subscriber loses messages.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewHub creates a hub. A nil config selects DefaultHubConfig.
func NewHub(config *HubConfig, logger *slog.Logger, metrics *observability.Metrics) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With("component", "feed"),
		metrics: metrics,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Notify queues change for every subscriber of its company.
func (h *Hub) Notify(change domain.LedgerChange) {
	if h.closed.Load() {
		return
	}
	msg, err := json.Marshal(change)
	if err != nil {
		h.logger.Error("encode change", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.company != "" && s.company != change.CompanyID {
			continue
		}
		select {
		case s.send <- msg:
			h.metrics.RecordFeedMessage("sent")
		default:
			h.metrics.RecordFeedMessage("dropped")
			h.logger.Warn("subscriber too slow, change dropped",
				"company_id", change.CompanyID, "entity", change.Entity, "id", change.ID)
		}
	}
}

// ServeHTTP upgrades the request and streams changes until the client goes away.
// The optional company query parameter restricts the stream to one company.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{
		company: r.URL.Query().Get("company"),
		send:    make(chan []byte, h.config.SendBuffer),
		conn:    conn,
	}
	if !h.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed closed"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}

	go h.writeLoop(s)
	go h.readLoop(s)
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and waits for their goroutines.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}

	h.mu.Lock()
	for s := range h.subs {
		close(s.send)
		delete(h.subs, s)
	}
	h.metrics.SetFeedSubscribers(0)
	h.mu.Unlock()

	h.wg.Wait()
}

// add registers s and accounts for its two loops. It reports false once
// Close has started; the check and wg.Add share h.mu with Close, so Close
// either sees s or s is never added.
func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return false
	}
	h.subs[s] = struct{}{}
	h.wg.Add(2)
	h.metrics.SetFeedSubscribers(len(h.subs))
	h.logger.Debug("subscriber connected", "company_id", s.company, "subscribers", len(h.subs))
	return true
}

// remove detaches s and closes its queue. Safe to call more than once.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
	h.metrics.SetFeedSubscribers(len(h.subs))
}

// writeLoop drains the subscriber queue and sends pings. It owns all writes to conn.
func (h *Hub) writeLoop(s *subscriber) {
	defer h.wg.Done()
	defer s.conn.Close()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(s)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(s)
				return
			}
		}
	}
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(s *subscriber) {
	defer h.wg.Done()

	_ = s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			h.remove(s)
			return
		}
	}
}
