package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/ipcril/internal/hostbridge"
	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/observability"
	"github.com/danmuck/ipcril/internal/ril"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Engine is the slice of *ril.Engine the admin surface drives.
type Engine interface {
	OnRequest(t ril.Token, req ril.Request)
	Cancel(t ril.Token)
	Status() ril.Status
	RadioGraph() string
}

type Server struct {
	Name     string
	Addr     string
	Appeared time.Time

	engine Engine
	bridge *hostbridge.Bridge
	router *gin.Engine
	log    zerolog.Logger
}

func New(name, addr string, engine Engine, bridge *hostbridge.Bridge, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	log := logging.Component("admin")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.HTTPObserver(name, log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     name,
		Addr:     addr,
		Appeared: time.Now(),
		engine:   engine,
		bridge:   bridge,
		router:   r,
		log:      log,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on Addr until ctx ends, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Msg("admin listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
