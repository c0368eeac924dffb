// Package v1 implements the REST + SSE API surface.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/useinkwell/inkwell/server/auth"
	"github.com/useinkwell/inkwell/server/profile"
	"github.com/useinkwell/inkwell/store"
)

// APIV1Service bundles the dependencies of the v1 handlers.
type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store
}

// NewAPIV1Service creates the v1 handler set.
func NewAPIV1Service(secret string, p *profile.Profile, s *store.Store) *APIV1Service {
	return &APIV1Service{
		Secret:  secret,
		Profile: p,
		Store:   s,
	}
}

// Register mounts all v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	s.registerAIChatRoutes(e)
	s.registerAIConfigRoutes(e)
	s.registerTokenStatsRoutes(e)
}

// requireAuth resolves the request's credentials to a user or fails with 401.
func (s *APIV1Service) requireAuth(c *echo.Context) (*store.User, error) {
	authHeader := c.Request().Header.Get("Authorization")
	cookieHeader := c.Request().Header.Get("Cookie")
	user, err := auth.NewAuthenticator(s.Store, s.Secret).AuthenticateToUser(
		c.Request().Context(), authHeader, cookieHeader,
	)
	if err != nil || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return user, nil
}
