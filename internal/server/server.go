// Package server is the HTTP front end: it decodes proof requests, runs
// them through the dispatcher and returns the committed output with the
// encoded receipt.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/zkdrop/internal/constants"
	"github.com/mrz1836/zkdrop/internal/dispatch"
	"github.com/mrz1836/zkdrop/internal/guest"
	"github.com/mrz1836/zkdrop/internal/metrics"
	"github.com/mrz1836/zkdrop/internal/programs"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Route paths.
const (
	PathAESVerify  = "/aes-verify"
	PathRSAEncrypt = "/rsa-encrypt"
	PathRSAVerify  = "/rsa-verify"
	PathHealth     = "/healthz"
	PathPrograms   = "/programs"
	PathMetrics    = "/metrics"
)

// Config holds the HTTP server settings.
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Dispatcher is the part of dispatch.Dispatcher the server uses.
type Dispatcher interface {
	Run(ctx context.Context, name string, input []byte, mode dispatch.Mode) (*dispatch.Result, error)
	Registry() *programs.Registry
	RemoteEnabled() bool
}

// Server serves the proof API.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	router     *gin.Engine
}

// New builds the router. m may be nil to disable /metrics.
func New(cfg Config, d Dispatcher, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		metrics:    m,
		logger:     logger.With().Str("component", "http").Logger(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}

	proofs := r.Group("/", limitBody(constants.MaxRequestBodyBytes))
	proofs.POST(PathAESVerify, proveHandler[guest.AESCTRInput, guest.AESCTROutput](s, programs.AESCTRVerifier))
	proofs.POST(PathRSAEncrypt, proveHandler[guest.RSAEncryptInput, guest.RSAEncryptOutput](s, programs.RSAEncrypter))
	proofs.POST(PathRSAVerify, proveHandler[guest.RSAVerifyInput, guest.RSAVerifyOutput](s, programs.RSAVerifier))

	r.GET(PathHealth, s.handleHealth)
	r.GET(PathPrograms, s.handlePrograms)
	if s.metrics != nil {
		r.GET(PathMetrics, gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
