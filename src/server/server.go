// Package server exposes the verifier over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"gerrit-verifier/src/broker"
	"gerrit-verifier/src/display"
	"gerrit-verifier/src/store"
)

// Server is the HTTP API in front of the broker, the store and the display checks.
type Server struct {
	echo        *echo.Echo
	broker      broker.Broker
	store       store.Store
	resolver    *display.Resolver
	eligibility *display.Eligibility
	logger      *logrus.Logger
}

// New creates a server and registers its routes.
func New(brk broker.Broker, st store.Store, resolver *display.Resolver, eligibility *display.Eligibility, logger *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(LoggingMiddleware(logger))

	s := &Server{
		echo:        e,
		broker:      brk,
		store:       st,
		resolver:    resolver,
		eligibility: eligibility,
		logger:      logger,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	api.POST("/builds", s.PostBuild)
	api.GET("/plans/:planKey/eligible", s.GetPlanEligible)
	api.GET("/results/:planResultKey/change", s.GetResultChange)
	api.GET("/results/:planResultKey/verification", s.GetResultVerification)

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Infof("[Server] Listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
