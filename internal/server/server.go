// Package server exposes the layout pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness check
//	GET  /v1/strategies    registered layout strategies
//	POST /v1/layout        lay out markup, body is a pipeline.Options document
//
// Every response carries an X-Request-ID header. Errors are returned as
//
//	{"error": {"code": "INVALID_OPTION", "message": "..."}}
//
// with an HTTP status derived from the error code.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/gridflow/pkg/buildinfo"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/pipeline"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// DefaultMaxBodyBytes bounds the size of a layout request.
const DefaultMaxBodyBytes = 4 << 20

// Options configures a Server.
type Options struct {
	// Timeout caps a single layout request. Zero means pipeline.DefaultTimeout.
	Timeout time.Duration

	// MaxBodyBytes bounds request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	Logger *log.Logger
}

// Server serves layout requests with a shared pipeline runner.
type Server struct {
	runner *pipeline.Runner
	opts   Options
	logger *log.Logger
	router chi.Router
}

// New creates a Server backed by runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = pipeline.DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{runner: runner, opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/strategies", s.handleStrategies)
		r.Post("/layout", s.handleLayout)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to the layout timeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "version", buildinfo.Version)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// =============================================================================
// Handlers
// =============================================================================

// LayoutResponse is the body of a successful POST /v1/layout.
type LayoutResponse struct {
	RequestID  string            `json:"request_id"`
	MarkupHash string            `json:"markup_hash"`
	HTML       string            `json:"html,omitempty"`
	Status     grid.Status       `json:"status"`
	Stats      StatsResponse     `json:"stats"`
	Cache      CacheInfoResponse `json:"cache"`
}

// StatsResponse reports pipeline statistics with durations in milliseconds.
type StatsResponse struct {
	Items    int     `json:"items"`
	Renders  int     `json:"renders"`
	Pending  int     `json:"pending"`
	ParseMS  float64 `json:"parse_ms"`
	LayoutMS float64 `json:"layout_ms"`
	RenderMS float64 `json:"render_ms"`
}

// CacheInfoResponse reports cache hits.
type CacheInfoResponse struct {
	StatusHit bool `json:"status_hit"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"strategies": strategy.Names()})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	opts.RemoteOnly = true
	opts.Logger = s.logger.With("request_id", requestIDFrom(r.Context()))
	if opts.TimeoutMS <= 0 || time.Duration(opts.TimeoutMS)*time.Millisecond > s.opts.Timeout {
		opts.TimeoutMS = int(s.opts.Timeout / time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Timeout+time.Second)
	defer cancel()
	res, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LayoutResponse{
		RequestID:  requestIDFrom(r.Context()),
		MarkupHash: res.MarkupHash,
		HTML:       string(res.Artifacts[pipeline.FormatHTML]),
		Status:     res.Status,
		Stats: StatsResponse{
			Items:    res.Stats.ItemCount,
			Renders:  res.Stats.Renders,
			Pending:  res.Stats.Pending,
			ParseMS:  millis(res.Stats.ParseTime),
			LayoutMS: millis(res.Stats.LayoutTime),
			RenderMS: millis(res.Stats.RenderTime),
		},
		Cache: CacheInfoResponse{StatusHit: res.CacheInfo.StatusHit},
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("layout failed", "request_id", requestIDFrom(r.Context()), "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: errors.UserMessage(err)}})
}

// httpStatus maps an error code to an HTTP status.
func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidOption, errors.ErrCodeInvalidProperty, errors.ErrCodeInvalidStatus,
		errors.ErrCodeInvalidStrategy, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeContent:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeNetwork:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// =============================================================================
// Middleware
// =============================================================================

type ctxKey int

const requestIDKey ctxKey = 0

// requestID tags each request with an ID, reusing a client-supplied
// X-Request-ID when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", requestIDFrom(r.Context()))
	})
}
