// Package api - HTTP-поверхность для фронтенда: последние находки и
// WebSocket-поток событий. Сам интерфейс живёт отдельно; здесь только
// граница данных.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BetterCallFirewall/aegisx/internal/storage"
	"github.com/BetterCallFirewall/aegisx/internal/websocket"
)

// FindingsReader - срез реляционного хранилища для выдачи находок.
type FindingsReader interface {
	RecentFindings(ctx context.Context, limit int) ([]storage.StoredFinding, error)
}

type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, findings FindingsReader, hub *websocket.Hub) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/findings", func(w http.ResponseWriter, req *http.Request) {
		if findings == nil {
			http.Error(w, `{"error":"findings store is not configured"}`, http.StatusServiceUnavailable)
			return
		}
		limit := 50
		if raw := req.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
				limit = v
			}
		}
		rows, err := findings.RecentFindings(req.Context(), limit)
		if err != nil {
			log.Printf("❌ Failed to read findings: %v", err)
			http.Error(w, `{"error":"storage failure"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"findings": rows})
	})

	r.Get("/ws", hub.ServeWS)

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r},
	}
}

func (s *Server) ListenAndServe() error {
	log.Printf("🌐 API server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
