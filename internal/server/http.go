package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/numquiz/internal/config"
	"github.com/gokatarajesh/numquiz/internal/logging"
)

// Pinger is a dependency checked by /v1/ping.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// Routes are the handlers mounted by NewHTTPServer. Nil handlers are skipped.
type Routes struct {
	WebSocket     http.HandlerFunc
	RoomQRCode    http.HandlerFunc
	ResultByRoom  http.HandlerFunc
	RecentResults http.HandlerFunc
	GameHistory   http.HandlerFunc
}

// NewWSUpgrader builds the websocket upgrader. Browsers must present an
// Origin from allowedOrigins, or share the host; "*" admits any origin.
func NewWSUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			if _, ok := allowed[strings.ToLower(origin)]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// NewHTTPServer wires base routes (health, metrics) and the game routes for
// the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, gatherer prometheus.Gatherer, routes Routes, pingers ...Pinger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(logging.IntoContext(r.Context(), logger), 3*time.Second)
		defer cancel()
		if err := pingDependencies(ctx, pingers); err != nil {
			logging.FromContext(ctx).Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes.WebSocket != nil {
		mux.HandleFunc("/ws", routes.WebSocket)
	}

	if routes.RoomQRCode != nil {
		mux.HandleFunc("/v1/rooms/{room_id}/qr", routes.RoomQRCode)
	}
	if routes.ResultByRoom != nil {
		mux.HandleFunc("/v1/results/{room_id}", routes.ResultByRoom)
	}
	if routes.RecentResults != nil {
		mux.HandleFunc("/v1/results", routes.RecentResults)
	}
	if routes.GameHistory != nil {
		mux.HandleFunc("/v1/games", routes.GameHistory)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func pingDependencies(ctx context.Context, pingers []Pinger) error {
	for _, p := range pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}
