// Package httpapi hosts the controller's external surface: a health
// check, Prometheus scrape endpoint, and the websocket upgrade that
// admits RPC subscribers into internal/rpchub.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdnmpi/controller/internal/rpchub"
)

// Config configures the HTTP server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	MetricsEnabled bool
}

// Server hosts the controller's HTTP surface.
type Server struct {
	router *chi.Mux
	hub    *rpchub.Hub
	addr   string
}

// New builds a Server wired to hub.
func New(cfg Config, hub *rpchub.Hub) *Server {
	s := &Server{router: chi.NewRouter(), hub: hub, addr: cfg.Addr}

	r := s.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", s.handleHealthz)
	if cfg.MetricsEnabled {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}
	r.Get("/feed", s.handleFeed)

	return s
}

// ListenAndServe blocks serving the HTTP surface until the process is
// asked to stop or an unrecoverable listener error occurs.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(s.addr, s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleFeed upgrades an HTTP request to a websocket and admits it as
// an RPC subscriber for the lifetime of the connection.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: feed upgrade failed: %v", err)
		return
	}
	transport := &wsTransport{conn: conn}
	id := s.hub.Join(transport)
	defer s.hub.Leave(id)

	for {
		var reply json.RawMessage
		if err := conn.ReadJSON(&reply); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("httpapi: feed %s closed unexpectedly: %v", id, err)
			}
			return
		}
		// Subscribers send no meaningful replies today, but a
		// malformed one must not evict the connection.
		s.hub.ReportInvalidReply(id, errUnexpectedReply{raw: reply})
	}
}

type errUnexpectedReply struct{ raw json.RawMessage }

func (e errUnexpectedReply) Error() string { return "unexpected subscriber reply: " + string(e.raw) }

// wsTransport adapts a gorilla websocket connection to rpchub.Transport.
// Writes are serialized with a mutex since a *websocket.Conn permits
// at most one concurrent writer.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Send(call rpchub.Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(call)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
