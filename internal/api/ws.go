package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsWriteWait bounds a single frame write.
	wsWriteWait = 10 * time.Second
	// wsPingInterval keeps idle connections alive through proxies.
	wsPingInterval = 30 * time.Second
	// wsEventBuffer is the per-subscriber event buffer; the bus drops
	// events for subscribers that fall this far behind.
	wsEventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API serves a local operator UI; same-origin enforcement is
	// left to whatever fronts a public deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades to WebSocket and streams bus events as JSON
// frames until the client disconnects or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(wsEventBuffer)
	defer s.bus.Unsubscribe(ch)

	s.logger.Info("event stream connected", "remote", r.RemoteAddr)
	defer s.logger.Info("event stream disconnected", "remote", r.RemoteAddr)

	// Reader pump: we never expect client frames, but reading is what
	// surfaces close frames and dead connections.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
