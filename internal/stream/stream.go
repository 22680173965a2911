// Package stream serves live vehicle telemetry to ground-station UIs over
// websockets.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/uav_bridge/internal/types"
)

const (
	writeWait  = 5 * time.Second
	clientSize = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a bus handler and an http.Handler. Every client gets the latest
// snapshot on connect and each new one after that; a client that cannot
// keep up is disconnected.
type Hub struct {
	listen string

	mu      sync.Mutex
	clients map[chan []byte]bool
	last    []byte
}

func NewHub(listen string) *Hub {
	return &Hub{listen: listen, clients: make(map[chan []byte]bool)}
}

func (h *Hub) Receive(message types.Message) {
	switch message.MessageType {
	case types.MessageVehicleState:
		if state, ok := message.Message.(types.VehicleState); ok {
			message.Message = state.Quick()
		}
	case types.MessageCommandResult:
	default:
		return
	}
	b, err := json.Marshal(message)
	if err != nil {
		log.Printf("Could not marshal %s: %v", message.MessageType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if message.MessageType == types.MessageVehicleState {
		h.last = b
	}
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
			log.Warn("Telemetry client too slow, dropping it")
			delete(h.clients, ch)
			close(ch)
		}
	}
}

// Run serves the hub on the listen address until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	defer wg.Done()

	mux := http.NewServeMux()
	mux.Handle("/telemetry", h)
	server := &http.Server{Addr: h.listen, Handler: mux}
	go func() {
		log.Printf("Serving telemetry stream on %s", h.listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Telemetry stream: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	h.closeAll()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("error upgrading GET request to a websocket: %v", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientSize)
	h.mu.Lock()
	if h.last != nil {
		ch <- h.last
	}
	h.clients[ch] = true
	h.mu.Unlock()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			h.remove(ch)
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.remove(ch)
				return
			}
		}
	}
}

func (h *Hub) remove(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[ch] {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// Clients reports how many clients are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
