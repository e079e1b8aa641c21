package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/cadview/internal/observability"
	"github.com/danmuck/cadview/internal/runtime"
	"github.com/danmuck/cadview/internal/scene"
)

// DefaultMaxFrame bounds one websocket or POST body.
const DefaultMaxFrame = 256 * 1024 * 1024

// SceneSource exposes the current scene; the caller releases it.
type SceneSource interface {
	Current() *scene.Node
}

type Options struct {
	Addr        string
	CorsOrigins []string
	MaxFrame    int64
}

// Server is the HTTP and websocket front of a dispatcher.
type Server struct {
	addr       string
	maxFrame   int64
	dispatcher *runtime.Dispatcher
	scenes     SceneSource
	router     *gin.Engine
	upgrader   websocket.Upgrader
	started    time.Time
}

func NewServer(d *runtime.Dispatcher, scenes SceneSource, opts Options) *Server {
	observability.RegisterMetrics()
	if opts.MaxFrame <= 0 {
		opts.MaxFrame = DefaultMaxFrame
	}
	origins := normalizeOrigins(opts.CorsOrigins)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("cadview", "transport")))
	r.Use(observability.RequestMetricsMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		addr:       opts.Addr,
		maxFrame:   opts.MaxFrame,
		dispatcher: d,
		scenes:     scenes,
		router:     r,
		started:    time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     originChecker(origins),
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("transport.Server.ListenAndServe listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Str("addr", s.addr).Msg("transport.Server.ListenAndServe stopped")
		return nil
	}
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}

// originChecker accepts requests without an Origin header (non-browser
// runtimes) and browser requests from an allowed origin.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
