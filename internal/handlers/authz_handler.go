package handlers

import (
	"net/http"
	"strings"

	"github.com/quanghuy1242/auther-sub001/internal/api/validator"
	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/condition"
	"github.com/quanghuy1242/auther-sub001/internal/models"
	"github.com/quanghuy1242/auther-sub001/internal/tasks/rate"
	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthzHandler exposes the tuple-based access control operations over HTTP:
// platform access grants, scoped permission grants, model editing, dependency
// reports and condition-script tooling.
type AuthzHandler struct {
	db        *gorm.DB
	platform  *authz.PlatformAccessManager
	scoped    *authz.ScopedPermissionManager
	editor    *authz.ModelEditor
	resolver  *authz.AccessLevelResolver
	checker   *authz.Checker
	deps      *authz.DependencyChecker
	modelsSt  authz.ModelStore
	evaluator *condition.Evaluator
	limiter   *rate.Limiter
	log       *logger.Logger
}

func NewAuthzHandler(
	db *gorm.DB,
	platform *authz.PlatformAccessManager,
	scoped *authz.ScopedPermissionManager,
	editor *authz.ModelEditor,
	resolver *authz.AccessLevelResolver,
	checker *authz.Checker,
	deps *authz.DependencyChecker,
	modelStore authz.ModelStore,
	evaluator *condition.Evaluator,
	limiter *rate.Limiter,
) *AuthzHandler {
	return &AuthzHandler{
		db:        db,
		platform:  platform,
		scoped:    scoped,
		editor:    editor,
		resolver:  resolver,
		checker:   checker,
		deps:      deps,
		modelsSt:  modelStore,
		evaluator: evaluator,
		limiter:   limiter,
		log:       logger.New("AuthzHandler"),
	}
}

func callerID(c echo.Context) string {
	if id, ok := c.Get("subjectID").(string); ok {
		return id
	}
	return ""
}

// statusForResult maps a structured operation outcome onto an HTTP status.
func statusForResult(r authz.Result) int {
	switch {
	case r.Success:
		return http.StatusOK
	case strings.HasPrefix(r.Error, "Permission denied"):
		return http.StatusForbidden
	case strings.Contains(r.Error, "not found") || strings.Contains(r.Error, "does not exist"):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// GrantPlatformAccess grants owner/admin/use on a client
// @Summary Grant platform access
// @Description Grant a subject owner, admin or use access on a client. Relations are mutually exclusive: granting one removes the others.
// @Tags authz
// @Accept json
// @Produce json
// @Param request body validator.PlatformGrantRequest true "Grant details"
// @Success 200 {object} authz.GrantResult
// @Failure 400 {object} authz.GrantResult
// @Failure 403 {object} authz.GrantResult
// @Router /authz/platform/grant [post]
func (h *AuthzHandler) GrantPlatformAccess(c echo.Context) error {
	var req validator.PlatformGrantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := h.platform.Grant(c.Request().Context(), callerID(c), req.ClientID,
		models.SubjectType(req.SubjectType), req.SubjectID, models.PlatformRelation(req.Relation))
	return c.JSON(statusForResult(result.Result), result)
}

// RevokePlatformAccess revokes owner/admin/use on a client
// @Summary Revoke platform access
// @Description Revoke a subject's platform relation on a client. Fails when scoped permissions remain unless cascade is set.
// @Tags authz
// @Accept json
// @Produce json
// @Param request body validator.PlatformRevokeRequest true "Revoke details"
// @Success 200 {object} authz.RevokeResult
// @Failure 400 {object} authz.RevokeResult
// @Failure 403 {object} authz.RevokeResult
// @Router /authz/platform/revoke [post]
func (h *AuthzHandler) RevokePlatformAccess(c echo.Context) error {
	var req validator.PlatformRevokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := h.platform.Revoke(c.Request().Context(), callerID(c), req.ClientID,
		models.SubjectType(req.SubjectType), req.SubjectID, models.PlatformRelation(req.Relation), req.Cascade)
	return c.JSON(statusForResult(result.Result), result)
}

// GetAccessLevel returns a subject's highest platform relation on a client
// @Summary Get access level
// @Description Resolve the highest platform relation (owner > admin > use) a subject holds on a client
// @Tags authz
// @Produce json
// @Param clientId path string true "Client ID"
// @Param subjectId query string false "Subject ID, defaults to the caller"
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /authz/clients/{clientId}/access-level [get]
func (h *AuthzHandler) GetAccessLevel(c echo.Context) error {
	clientID := c.Param("clientId")
	subjectID := c.QueryParam("subjectId")
	if subjectID == "" {
		subjectID = callerID(c)
	}

	level, err := h.resolver.GetAccessLevel(c.Request().Context(), subjectID, clientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve access level"})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"clientId":    clientID,
		"subjectId":   subjectID,
		"accessLevel": string(level),
	})
}

// GrantScopedPermission grants a relation on a client-defined entity type
// @Summary Grant scoped permission
// @Description Grant a subject a relation on an entity of a client-defined entity type, optionally guarded by a condition script
// @Tags authz
// @Accept json
// @Produce json
// @Param request body validator.ScopedGrantRequest true "Grant details"
// @Success 200 {object} authz.GrantResult
// @Failure 400 {object} authz.GrantResult
// @Failure 403 {object} authz.GrantResult
// @Failure 404 {object} authz.GrantResult
// @Router /authz/scoped/grant [post]
func (h *AuthzHandler) GrantScopedPermission(c echo.Context) error {
	var req validator.ScopedGrantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := h.scoped.Grant(c.Request().Context(), callerID(c), req.ClientID,
		req.EntityTypeName, req.EntityID, req.Relation,
		models.SubjectType(req.SubjectType), req.SubjectID, req.Condition)
	return c.JSON(statusForResult(result.Result), result)
}

// RevokeScopedPermission deletes a scoped permission tuple by id
// @Summary Revoke scoped permission
// @Description Delete a scoped permission tuple. API-key impact is reported as warnings but never blocks the revocation.
// @Tags authz
// @Produce json
// @Param tupleId path string true "Tuple ID"
// @Success 200 {object} authz.RevokeResult
// @Failure 403 {object} authz.RevokeResult
// @Failure 404 {object} authz.RevokeResult
// @Router /authz/scoped/{tupleId} [delete]
func (h *AuthzHandler) RevokeScopedPermission(c echo.Context) error {
	result := h.scoped.Revoke(c.Request().Context(), callerID(c), c.Param("tupleId"))
	return c.JSON(statusForResult(result.Result), result)
}

// ListScopedPermissions lists scoped permissions under a client
// @Summary List scoped permissions
// @Description List scoped permission tuples under a client, optionally filtered by subject. Entity types are resolved through the model so renames show immediately.
// @Tags authz
// @Produce json
// @Param clientId path string true "Client ID"
// @Param subjectType query string false "Subject type filter"
// @Param subjectId query string false "Subject ID filter"
// @Success 200 {array} authz.ScopedPermissionEntry
// @Failure 500 {object} map[string]string
// @Router /authz/clients/{clientId}/scoped-permissions [get]
func (h *AuthzHandler) ListScopedPermissions(c echo.Context) error {
	entries, err := h.checker.GetScopedPermissions(c.Request().Context(),
		c.Param("clientId"),
		models.SubjectType(c.QueryParam("subjectType")),
		c.QueryParam("subjectId"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list scoped permissions"})
	}
	return c.JSON(http.StatusOK, entries)
}

type CheckRequest struct {
	ClientID       string                 `json:"clientId" validate:"required"`
	EntityTypeName string                 `json:"entityTypeName" validate:"required"`
	EntityID       string                 `json:"entityId" validate:"required"`
	Relation       string                 `json:"relation" validate:"required"`
	SubjectType    string                 `json:"subjectType" validate:"required,subject_type"`
	SubjectID      string                 `json:"subjectId" validate:"required"`
	Context        map[string]interface{} `json:"context"`
}

// Check answers whether a subject holds a relation on an entity
// @Summary Check permission
// @Description Check whether a subject holds a relation on an entity, evaluating condition scripts against the supplied context
// @Tags authz
// @Accept json
// @Produce json
// @Param request body CheckRequest true "Check details"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /authz/check [post]
func (h *AuthzHandler) Check(c echo.Context) error {
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	allowed, err := h.checker.Check(c.Request().Context(), req.ClientID,
		req.EntityTypeName, req.EntityID, req.Relation,
		models.SubjectType(req.SubjectType), req.SubjectID, req.Context)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Check failed"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"allowed": allowed})
}

// UpdateModel creates or updates an entity type's authorization model
// @Summary Create or update an authorization model
// @Description Upsert the relation/permission definition for a client-defined entity type. Removing a relation still referenced by tuples is rejected.
// @Tags models
// @Accept json
// @Produce json
// @Param request body validator.ModelUpdateRequest true "Model definition"
// @Success 200 {object} authz.Result
// @Failure 400 {object} authz.Result
// @Failure 403 {object} authz.Result
// @Router /authz/models [put]
func (h *AuthzHandler) UpdateModel(c echo.Context) error {
	var req validator.ModelUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	def, err := authz.ParseDefinition(datatypes.JSON(req.Definition))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid definition: " + err.Error()})
	}

	result := h.editor.Update(c.Request().Context(), callerID(c), req.ClientID, req.EntityTypeName, def)
	return c.JSON(statusForResult(result), result)
}

// GetModel returns one authorization model
// @Summary Get an authorization model
// @Tags models
// @Produce json
// @Param clientId path string true "Client ID"
// @Param name path string true "Entity type name"
// @Success 200 {object} models.AuthorizationModel
// @Failure 404 {object} map[string]string
// @Router /authz/models/{clientId}/{name} [get]
func (h *AuthzHandler) GetModel(c echo.Context) error {
	model, err := h.modelsSt.Get(c.Request().Context(), c.Param("clientId"), c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Authorization model not found"})
	}
	return c.JSON(http.StatusOK, model)
}

// ListModels lists a client's authorization models
// @Summary List authorization models
// @Tags models
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {array} models.AuthorizationModel
// @Failure 500 {object} map[string]string
// @Router /authz/models/{clientId} [get]
func (h *AuthzHandler) ListModels(c echo.Context) error {
	list, err := h.modelsSt.List(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list models"})
	}
	return c.JSON(http.StatusOK, list)
}

// DeleteModel deletes an entity type's authorization model
// @Summary Delete an authorization model
// @Description Delete an entity type's model. Rejected while tuples still reference the entity type.
// @Tags models
// @Produce json
// @Param clientId path string true "Client ID"
// @Param name path string true "Entity type name"
// @Success 200 {object} authz.Result
// @Failure 400 {object} authz.Result
// @Failure 403 {object} authz.Result
// @Failure 404 {object} authz.Result
// @Router /authz/models/{clientId}/{name} [delete]
func (h *AuthzHandler) DeleteModel(c echo.Context) error {
	result := h.editor.Delete(c.Request().Context(), callerID(c), c.Param("clientId"), c.Param("name"))
	return c.JSON(statusForResult(result), result)
}

// RenameModel renames an entity type
// @Summary Rename an entity type
// @Description Rename an entity type. Existing tuples keep working through the model reference while their stored strings are rewritten.
// @Tags models
// @Accept json
// @Produce json
// @Param request body validator.ModelRenameRequest true "Rename details"
// @Success 200 {object} authz.Result
// @Failure 400 {object} authz.Result
// @Failure 403 {object} authz.Result
// @Failure 404 {object} authz.Result
// @Router /authz/models/rename [post]
func (h *AuthzHandler) RenameModel(c echo.Context) error {
	var req validator.ModelRenameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := h.editor.Rename(c.Request().Context(), callerID(c), req.ClientID, req.OldName, req.NewName)
	return c.JSON(statusForResult(result), result)
}

// CheckRelationUsage reports how many tuples reference a relation
// @Summary Check relation usage
// @Tags dependencies
// @Produce json
// @Param clientId query string true "Client ID"
// @Param entityTypeName query string true "Entity type name"
// @Param relation query string true "Relation"
// @Success 200 {object} authz.RelationUsage
// @Failure 500 {object} map[string]string
// @Router /authz/dependencies/relation-usage [get]
func (h *AuthzHandler) CheckRelationUsage(c echo.Context) error {
	usage, err := h.deps.CheckRelationUsage(c.Request().Context(),
		c.QueryParam("clientId"), c.QueryParam("entityTypeName"), c.QueryParam("relation"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to check relation usage"})
	}
	return c.JSON(http.StatusOK, usage)
}

// CheckSubjectDependencies counts a subject's scoped permissions under a client
// @Summary Count a subject's scoped permissions
// @Tags dependencies
// @Produce json
// @Param clientId query string true "Client ID"
// @Param subjectType query string true "Subject type"
// @Param subjectId query string true "Subject ID"
// @Success 200 {object} map[string]int64
// @Failure 500 {object} map[string]string
// @Router /authz/dependencies/subject [get]
func (h *AuthzHandler) CheckSubjectDependencies(c echo.Context) error {
	count, err := h.deps.CheckScopedPermissionsForUser(c.Request().Context(),
		c.QueryParam("clientId"),
		models.SubjectType(c.QueryParam("subjectType")),
		c.QueryParam("subjectId"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to count scoped permissions"})
	}
	return c.JSON(http.StatusOK, map[string]int64{"scopedPermissions": count})
}

type ResourceDependencyRequest struct {
	ClientID string              `json:"clientId" validate:"required"`
	Proposed map[string][]string `json:"proposed" validate:"required"`
}

// CheckResourceDependencies reports what would break under a narrowed resource allow-list
// @Summary Check resource dependencies
// @Description Report which client defaults and API key permissions would become invalid under a proposed resource allow-list
// @Tags dependencies
// @Accept json
// @Produce json
// @Param request body ResourceDependencyRequest true "Proposed allow-list"
// @Success 200 {object} authz.ResourceDependencyReport
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /authz/dependencies/resources [post]
func (h *AuthzHandler) CheckResourceDependencies(c echo.Context) error {
	var req ResourceDependencyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	report, err := h.deps.CheckResourceDependencies(c.Request().Context(), req.ClientID, req.Proposed)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to check resource dependencies"})
	}
	return c.JSON(http.StatusOK, report)
}

// ValidateCondition validates a condition script without running it
// @Summary Validate a condition script
// @Description Parse a condition script and report syntax validity plus static analysis findings
// @Tags conditions
// @Accept json
// @Produce json
// @Param request body validator.ConditionTestRequest true "Script"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /authz/conditions/validate [post]
func (h *AuthzHandler) ValidateCondition(c echo.Context) error {
	var req validator.ConditionTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	validation := h.evaluator.Validate(req.Script)
	analysis := h.evaluator.Analyze(req.Script)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"validation": validation,
		"analysis":   analysis,
	})
}

// TestCondition runs a condition script against a sample context
// @Summary Test a condition script
// @Description Execute a condition script in the sandbox against a caller-supplied context. Rate limited per caller.
// @Tags conditions
// @Accept json
// @Produce json
// @Param request body validator.ConditionTestRequest true "Script and sample context"
// @Success 200 {object} condition.TestResult
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /authz/conditions/test [post]
func (h *AuthzHandler) TestCondition(c echo.Context) error {
	var req validator.ConditionTestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request().Context(), callerID(c))
		if err != nil {
			h.log.Warn("rate limiter unavailable, allowing test run: %v", err)
		} else if !allowed {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many test runs, slow down"})
		}
	}

	result := h.evaluator.Test(c.Request().Context(), req.Script, req.Context)
	return c.JSON(http.StatusOK, result)
}
