package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sahaj-careers/sahaj/internal/config"
	"github.com/sahaj-careers/sahaj/internal/observability"
	"github.com/sahaj-careers/sahaj/internal/protocol"
	"github.com/sahaj-careers/sahaj/internal/speech"
	"github.com/sahaj-careers/sahaj/internal/store"
)

const (
	wsInitWait     = 30 * time.Second
	wsPongWait     = 120 * time.Second
	wsPingPeriod   = 50 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 8 << 20
)

// Turns run one at a time, so only a few frames may wait behind the current
// one; the rest stay in the socket.
const (
	wsInboundQueue  = 4
	wsOutboundQueue = 32
)

// ConnectionRunner drives one voice connection after its init frame.
type ConnectionRunner interface {
	RunConnection(ctx context.Context, init protocol.Init, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg        config.Config
	store      store.Store
	voice      ConnectionRunner
	translator speech.Translator
	metrics    *observability.Metrics
	logger     *zap.Logger
	validate   *validator.Validate
	upgrader   websocket.Upgrader
}

// New wires the HTTP surface. translator may be nil, in which case the
// translate endpoint answers 501.
func New(
	cfg config.Config,
	st store.Store,
	voice ConnectionRunner,
	translator speech.Translator,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Server {
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		voice:      voice,
		translator: translator,
		metrics:    metrics,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				if cfg.FrontendURL != "" && strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(cfg.FrontendURL, "/")) {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/health", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Get("/ws/voice", s.handleVoiceWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Get("/profile/{user_id}", s.handleGetProfile)
		r.Put("/profile/{user_id}", s.handleUpdateProfile)
		r.Get("/session/{user_id}/history", s.handleSessionHistory)
		r.Get("/resume/{user_id}", s.handleGetResume)
		r.Post("/translate", s.handleTranslate)
	})

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{}
	if s.cfg.FrontendURL != "" {
		origins = append(origins, s.cfg.FrontendURL)
	}
	if s.cfg.AllowAnyOrigin {
		origins = []string{"*"}
	}
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !s.cfg.AllowAnyOrigin,
		MaxAge:           300,
	}
	if len(origins) == 0 {
		// An empty list means every origin to the cors package.
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return opts
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sahaj-api",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "store not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleVoiceWS upgrades the connection, reads the init frame and hands the
// socket to the voice runner. Writes happen on a single goroutine.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "voice handler not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	_ = conn.SetReadDeadline(time.Now().Add(wsInitWait))
	frameType, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	if frameType != websocket.TextMessage {
		s.rejectInit(conn, errors.New("first frame must be a JSON init message"))
		return
	}
	init, err := protocol.ParseInit(raw)
	if err != nil {
		s.rejectInit(conn, err)
		return
	}

	s.metrics.SessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, wsInboundQueue)
	outbound := make(chan any, wsOutboundQueue)

	go func() {
		defer close(outbound)
		defer cancel()
		if err := s.voice.RunConnection(ctx, init, inbound, outbound); err != nil {
			s.logger.Warn("voice connection ended with error", zap.Error(err))
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing the socket unblocks the read loop once the runner is done.
		defer conn.Close()
		s.writeLoop(ctx, cancel, conn, outbound)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

readLoop:
	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg any
		switch frameType {
		case websocket.BinaryMessage:
			msg = protocol.Audio{Data: data}
		case websocket.TextMessage:
			parsed, err := protocol.ParseClientMessage(data)
			if err != nil {
				if !errors.Is(err, protocol.ErrUnsupportedType) {
					s.logger.Debug("dropping malformed client frame", zap.Error(err))
				}
				s.metrics.Message("inbound", "ignored")
				continue
			}
			msg = parsed
		default:
			continue
		}

		if t, ok := messageTypeOf(msg); ok {
			s.metrics.Message("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- msg:
		}
	}

	cancel()
	close(inbound)
	<-writerDone
	s.metrics.SessionEvent("ws_disconnected")
}

// writeLoop drains outbound until the runner closes it. After a write
// failure remaining events are discarded.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound <-chan any) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	failed := false
	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				if !failed {
					_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}
			if failed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.metrics.SessionEvent("ws_write_error")
				failed = true
				cancel()
				continue
			}
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.Message("outbound", string(t))
			}
		case <-ticker.C:
			if failed || ctx.Err() != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				failed = true
				cancel()
			}
		}
	}
}

func (s *Server) rejectInit(conn *websocket.Conn, err error) {
	s.metrics.SessionEvent("ws_invalid_init")
	s.logger.Info("rejecting websocket init frame", zap.Error(err))
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteJSON(protocol.NewError("invalid_init", "Invalid init message. Send {\"user_id\"?, \"language\"?} first."))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid init"))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.Audio:
		return protocol.TypeAudio, true
	case protocol.TextMessage:
		return m.Type, true
	case protocol.ChangeState:
		return m.Type, true
	case protocol.SessionInit:
		return m.Type, true
	case protocol.Greeting:
		return m.Type, true
	case protocol.Response:
		return m.Type, true
	case protocol.StateChanged:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
