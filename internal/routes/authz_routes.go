package routes

import (
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/condition"
	"github.com/quanghuy1242/auther-sub001/internal/config"
	"github.com/quanghuy1242/auther-sub001/internal/handlers"
	"github.com/quanghuy1242/auther-sub001/internal/tasks"
	"github.com/quanghuy1242/auther-sub001/internal/tasks/rate"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// SetupAuthzRoutes wires the authorization core under /authz. All routes
// assume the caller is already authenticated by the group's auth middleware;
// per-client access checks happen inside the managers themselves.
func SetupAuthzRoutes(api *echo.Group, db *gorm.DB, cfg *config.Config, taskClient *tasks.TaskClient) {
	tupleStore := authz.NewTupleStore(db)
	modelStore := authz.NewModelStore(db)
	resolver := authz.NewAccessLevelResolver(tupleStore)
	evaluator := condition.New(time.Duration(cfg.Policy.ScriptTimeoutMs) * time.Millisecond)
	deps := authz.NewDependencyChecker(db, tupleStore, modelStore)

	var snapshots authz.SnapshotEnqueuer
	var limiter *rate.Limiter
	if taskClient != nil {
		snapshots = taskClient
		limiter = rate.NewLimiter(taskClient.GetRedis(), rate.Config{
			Name:   "condition_test",
			Window: time.Minute,
			Max:    cfg.Policy.TestRatePerMinute,
		})
	}

	platform := authz.NewPlatformAccessManager(db, resolver)
	scoped := authz.NewScopedPermissionManager(db, tupleStore, modelStore, resolver, evaluator, snapshots)
	editor := authz.NewModelEditor(db, tupleStore, modelStore, resolver, evaluator, snapshots, deps)
	checker := authz.NewChecker(db, evaluator)

	h := handlers.NewAuthzHandler(db, platform, scoped, editor, resolver, checker, deps, modelStore, evaluator, limiter)

	g := api.Group("/authz")

	// Platform access (Layer A)
	g.POST("/platform/grant", h.GrantPlatformAccess)
	g.POST("/platform/revoke", h.RevokePlatformAccess)
	g.GET("/clients/:clientId/access-level", h.GetAccessLevel)

	// Scoped permissions (Layer B)
	g.POST("/scoped/grant", h.GrantScopedPermission)
	g.DELETE("/scoped/:tupleId", h.RevokeScopedPermission)
	g.GET("/clients/:clientId/scoped-permissions", h.ListScopedPermissions)
	g.POST("/check", h.Check)

	// Authorization models
	g.PUT("/models", h.UpdateModel)
	g.POST("/models/rename", h.RenameModel)
	g.GET("/models/:clientId", h.ListModels)
	g.GET("/models/:clientId/:name", h.GetModel)
	g.DELETE("/models/:clientId/:name", h.DeleteModel)

	// Dependency reports
	g.GET("/dependencies/relation-usage", h.CheckRelationUsage)
	g.GET("/dependencies/subject", h.CheckSubjectDependencies)
	g.POST("/dependencies/resources", h.CheckResourceDependencies)

	// Condition script tooling
	g.POST("/conditions/validate", h.ValidateCondition)
	g.POST("/conditions/test", h.TestCondition)
}
