// Package server exposes the review workflow and admin triggers over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/heather/internal/app"
	"github.com/Ramsey-B/heather/pkg/middleware"
	authorityroutes "github.com/Ramsey-B/heather/pkg/routes/authority"
	graphroutes "github.com/Ramsey-B/heather/pkg/routes/graph"
	"github.com/Ramsey-B/heather/pkg/routes/health"
	"github.com/Ramsey-B/heather/pkg/routes/potentialmatch"
)

// Version is stamped at build time.
var Version = "dev"

type indexPinger interface {
	Ping(ctx context.Context, indexName string) error
}

type Server struct {
	app     *app.App
	echo    *echo.Echo
	http    *http.Server
	checker *health.Checker
	auth    middleware.TokenVerifier
}

// New builds the router. The app's services must already be started.
// A nil verifier leaves the API unauthenticated.
func New(a *app.App, verifier middleware.TokenVerifier) *Server {
	cfg := a.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.Logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	checker := health.NewChecker(a.DB.PingContext, Version)
	if a.Redis != nil {
		checker.AddCheck("redis", a.Redis.Ping)
	}
	if a.Graph != nil {
		checker.AddCheck("graph", a.Graph.VerifyConnectivity)
	}
	// index failures degrade retrieval to empty results, so the check is optional
	if pinger, ok := a.Index.(indexPinger); ok {
		checker.AddCheck("index", func(ctx context.Context) error { return pinger.Ping(ctx, cfg.IndexName) })
	}
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if verifier != nil {
		api.Use(middleware.Authentication(a.Logger, verifier))
	}
	authorityroutes.NewHandler(a.Runner, a.Retriever, a.Logger).Register(api)
	identities := api.Group("/identities/:key")
	potentialmatch.NewHandler(a.Review, a.Logger).Register(identities)
	if a.Authorship != nil {
		graphroutes.NewHandler(a.Authorship, a.Logger).Register(identities)
	}

	return &Server{
		app:     a,
		echo:    e,
		checker: checker,
		auth:    verifier,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           e,
			ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
			WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
			IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

// Handler is the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens in the background and marks the service ready.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.app.Logger.WithField("addr", s.http.Addr).Info("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.app.Logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	s.checker.SetReady(true)
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.checker.SetReady(false)
	return s.http.Shutdown(ctx)
}
