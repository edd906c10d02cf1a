// FILE: uiserver.go
// Package main – UI websocket transport for the state projection.
//
// Serves /socket: each client gets a uuid, receives the full state snapshot
// on connect, and from then on only the scalars that changed (the dirty-bit
// projection in state.go). The main loop calls Flush each tick to broadcast
// pending updates; a client whose write fails is dropped from the registry.

package main

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// UIServer pushes state projections to connected UI clients.
type UIServer struct {
	state    *AppState
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func NewUIServer(state *AppState) *UIServer {
	return &UIServer{
		state: state,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// Register mounts the websocket endpoint on mux.
func (s *UIServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("/socket", s.handleSocket)
}

func (s *UIServer) handleSocket(rw http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		log.Printf("[UI] upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()

	s.mu.Lock()
	// Full snapshot first, so the client never renders from partial state.
	s.state.WriteAll(func(msg StateMessage) {
		_ = conn.WriteJSON(msg)
	})
	s.clients[id] = conn
	s.mu.Unlock()

	go s.readLoop(id, conn)
}

// readLoop discards inbound messages; its job is detecting the close.
func (s *UIServer) readLoop(id string, conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(id)
}

func (s *UIServer) drop(id string) {
	s.mu.Lock()
	if conn, ok := s.clients[id]; ok {
		conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()
}

// Flush broadcasts every dirty scalar to all connected clients.
func (s *UIServer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []string
	s.state.WriteUpdates(func(msg StateMessage) {
		for id, conn := range s.clients {
			if err := conn.WriteJSON(msg); err != nil {
				failed = append(failed, id)
			}
		}
	})

	for _, id := range failed {
		if conn, ok := s.clients[id]; ok {
			conn.Close()
			delete(s.clients, id)
		}
	}
}

// ClientCount reports the number of connected UI clients.
func (s *UIServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
