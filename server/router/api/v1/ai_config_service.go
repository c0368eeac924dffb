package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/useinkwell/inkwell/store"
)

type aiConfigRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

type aiConfigResponse struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"apiKey"`
	Model     string `json:"model"`
	CreatedTs int64  `json:"createdTs"`
	UpdatedTs int64  `json:"updatedTs"`
}

func (s *APIV1Service) registerAIConfigRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/ai")
	g.GET("/config", s.getAIConfig)
	g.POST("/config", s.upsertAIConfig)
	g.PUT("/config", s.upsertAIConfig)
	g.DELETE("/config", s.deleteAIConfig)
}

func (s *APIV1Service) getAIConfig(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	config, err := s.Store.GetAIConfig(c.Request().Context(), user.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if config == nil {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, aiConfigResponse{
		Provider:  config.Provider,
		APIKey:    config.APIKey,
		Model:     config.Model,
		CreatedTs: config.CreatedTs,
		UpdatedTs: config.UpdatedTs,
	})
}

func (s *APIV1Service) upsertAIConfig(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	var req aiConfigRequest
	if err := c.Bind(&req); err != nil || req.APIKey == "" || req.Model == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "apiKey and model required")
	}
	if req.Provider == "" {
		req.Provider = "deepseek"
	}
	config, err := s.Store.UpsertAIConfig(c.Request().Context(), &store.AIConfig{
		CreatorID: user.ID,
		Provider:  req.Provider,
		APIKey:    req.APIKey,
		Model:     req.Model,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, aiConfigResponse{
		Provider:  config.Provider,
		APIKey:    config.APIKey,
		Model:     config.Model,
		CreatedTs: config.CreatedTs,
		UpdatedTs: config.UpdatedTs,
	})
}

func (s *APIV1Service) deleteAIConfig(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteAIConfig(c.Request().Context(), user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
