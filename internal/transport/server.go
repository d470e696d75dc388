package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Server upgrades /ws connections and routes each client's request
// frames to the Gateway.
type Server struct {
	gateway        *Gateway
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

// NewServer builds a Server around gw/broadcaster. allowedOrigins, when
// non-empty, restricts which Origin headers are accepted and rejects
// requests without one; an empty list accepts a missing Origin and
// otherwise falls back to same-host/localhost/127.0.0.1/::1 (dev-only).
func NewServer(gw *Gateway, broadcaster *Broadcaster, allowedOrigins []string) *Server {
	s := &Server{
		gateway:        gw,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

// SetupRoutes registers the WebSocket endpoint on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("transport: %v", err)
		return
	}
	log.Printf("transport: client connected: %s", r.RemoteAddr)

	defer func() {
		s.broadcaster.RemoveClient(c)
		log.Printf("transport: client disconnected: %s", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg GatewayMessage
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
			s.broadcaster.SendTo(c, GatewayResponse{
				Type:    RespError,
				Payload: ErrorPayload{Message: "malformed request frame: " + jsonErr.Error()},
			})
			continue
		}

		s.broadcaster.SendTo(c, s.gateway.Dispatch(msg))
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return len(s.allowedOrigins) == 0
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}
