// Package server assembles the HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/useinkwell/inkwell/server/profile"
	apiv1 "github.com/useinkwell/inkwell/server/router/api/v1"
	"github.com/useinkwell/inkwell/store"
)

// Server wires the echo instance, the store, and the API services.
type Server struct {
	e       *echo.Echo
	hs      *http.Server
	profile *profile.Profile
	store   *store.Store
}

// NewServer builds the server and mounts all routes.
func NewServer(p *profile.Profile, s *store.Store) *Server {
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	apiv1.NewAPIV1Service(p.Secret, p, s).Register(e)

	return &Server{
		e: e,
		hs: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", p.Addr, p.Port),
			Handler: e,
		},
		profile: p,
		store:   s,
	}
}

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.hs.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}
