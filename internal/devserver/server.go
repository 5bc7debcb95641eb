// Package devserver is a local stand-in for the invoice parsing service. It
// serves the same HTTP contract the client speaks, with a line-echo parser
// and a pluggable OCR engine.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/ocr"
)

// Defaults match the hosted service.
const (
	DefaultMaxBodyBytes      = 200_000
	DefaultRequestsPerMinute = 120
	DefaultMaxCharsPerItem   = 50_000
)

// DefaultAllowedOrigins are the local front-end origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Config bounds what the server accepts. Zero values take the defaults;
// a negative RequestsPerMinute disables rate limiting.
type Config struct {
	MaxBodyBytes      int64
	RequestsPerMinute int
	MaxCharsPerItem   int
	AllowedOrigins    []string
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.MaxCharsPerItem <= 0 {
		c.MaxCharsPerItem = DefaultMaxCharsPerItem
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = DefaultAllowedOrigins
	}
	return c
}

// Option configures a Server.
type Option func(*Server)

// WithOCR installs an OCR engine. Without one, /parse-image answers 503.
// Engine errors wrapping ocr.ErrInput answer 422; all others answer 503.
func WithOCR(ext ocr.Extractor) Option {
	return func(s *Server) {
		s.ocr = ext
	}
}

// WithRequestID overrides request id generation.
func WithRequestID(fn func() string) Option {
	return func(s *Server) {
		s.requestID = fn
	}
}

// Server holds the handlers and their limits.
type Server struct {
	cfg       Config
	ocr       ocr.Extractor
	requestID func() string
	limiter   *clientLimiter
}

// New creates a Server.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg.withDefaults(),
		requestID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.RequestsPerMinute > 0 {
		s.limiter = newClientLimiter(s.cfg.RequestsPerMinute)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	r.Use(s.limitPayload)
	if s.limiter != nil {
		r.Use(s.limiter.middleware)
	}

	r.Get("/health", s.handleHealth)
	r.Post("/parse", s.handleParse)
	r.Post("/parse-image", s.handleParseImage)
	r.Post("/export/xlsx", s.handleExportXLSX)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.requestID()
		w.Header().Set("X-Request-ID", id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		zap.L().Info("devserver: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", id),
		)
	})
}

type requestIDKey struct{}

// requestIDFrom returns the id logRequests assigned to the request.
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("devserver: write response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
