package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
	"github.com/viniciushammett/go-log-stream-detector/internal/metrics"
	"github.com/viniciushammett/go-log-stream-detector/internal/model"
	"github.com/viniciushammett/go-log-stream-detector/internal/session"
)

var tracer = otel.Tracer("api")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// History is the durable alert history (the bbolt store).
type History interface {
	List(limit int) ([]model.AlertRecord, error)
}

type Deps struct {
	Log         *logger.Logger
	Session     *session.Session
	History     History
	Hub         *Hub
	AuthToken   string
	DefaultRoot string
	DefaultExts []string
}

type Config struct {
	Addr        string
	CORSOrigins []string
}

type Server struct {
	d Deps
	c Config
}

func NewServer(d Deps, c Config) *Server {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Server{d: d, c: c}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.d.Log.HTTP)
	if len(s.c.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.c.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { metrics.Handler().ServeHTTP(w, r) })

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.handleStatus)
		r.Post("/session/start", s.handleStart)
		r.Post("/session/stop", s.handleStop)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/history", s.handleHistory)
		r.Get("/export.csv", s.handleExport)
		r.Get("/stream", s.handleStream) // websocket: alertas e candidatos ao vivo
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.c.Addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.d.Log.Info().Str("addr", s.c.Addr).Msg("http listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) auth(r *http.Request) bool {
	if s.d.AuthToken == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	return strings.HasPrefix(got, "Bearer ") && strings.TrimPrefix(got, "Bearer ") == s.d.AuthToken
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Session.Status())
}

type startPayload struct {
	Root       string   `json:"root"`
	Extensions []string `json:"extensions"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "POST /v1/session/start")
	defer span.End()

	if !s.auth(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var p startPayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	if p.Root == "" {
		p.Root = s.d.DefaultRoot
	}
	if len(p.Extensions) == 0 {
		p.Extensions = s.d.DefaultExts
	}
	if p.Root == "" {
		writeError(w, http.StatusBadRequest, "root is required")
		return
	}
	span.SetAttributes(attribute.String("root", p.Root), attribute.StringSlice("extensions", p.Extensions))

	if err := s.d.Session.Start(p.Root, p.Extensions); err != nil {
		var already *session.AlreadyRunningError
		if errors.As(err, &already) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, s.d.Session.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.auth(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.d.Session.Stop()
	if r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.d.Session.Wait(ctx); err != nil {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusAccepted, s.d.Session.Status())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	all := s.d.Session.Alerts()
	if n := limitParam(r, 0); n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "GET /v1/alerts/history")
	defer span.End()

	if s.d.History == nil {
		writeError(w, http.StatusNotFound, "no alert store configured")
		return
	}
	arr, err := s.d.History.List(limitParam(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, arr)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)
	if err := s.d.Session.Export(w); err != nil {
		s.d.Log.Error().Err(err).Msg("export csv")
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.d.Hub == nil {
		writeError(w, http.StatusNotFound, "stream disabled")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.d.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := s.d.Hub.Subscribe()
	defer s.d.Hub.Unsubscribe(events)

	// read pump: only to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				s.d.Log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
