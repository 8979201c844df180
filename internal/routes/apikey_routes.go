package routes

import (
	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func SetupAPIKeyRoutes(api *echo.Group, db *gorm.DB) {
	tupleStore := authz.NewTupleStore(db)
	modelStore := authz.NewModelStore(db)
	resolver := authz.NewAccessLevelResolver(tupleStore)
	deps := authz.NewDependencyChecker(db, tupleStore, modelStore)

	h := handlers.NewAPIKeyHandler(db, resolver, deps)

	g := api.Group("/apikeys")
	g.POST("", h.CreateAPIKey)
	g.GET("/:clientId", h.ListAPIKeys)
	g.DELETE("/:id", h.RevokeAPIKey)
}
