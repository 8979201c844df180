package api

import (
	"net/http"

	"github.com/quanghuy1242/auther-sub001/internal/api/middleware"
	"github.com/quanghuy1242/auther-sub001/internal/routes"

	_ "github.com/quanghuy1242/auther-sub001/docs/swagger"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Hello, World!")
	})
	// Health check
	// @Summary Health check
	// @Description Check if the server is running
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 group
	api := s.echo.Group("/api/v1")
	auth := middleware.NewAuthMiddleware(s.config.JWT.Secret)
	api.Use(auth.Middleware())
	api.Use(middleware.RequireMethodScope())

	routes.SetupAuthzRoutes(api, s.db, s.config, s.taskClient)
	routes.SetupAPIKeyRoutes(api, s.db)
}
