package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/api/validator"
	"github.com/quanghuy1242/auther-sub001/internal/authz"
	"github.com/quanghuy1242/auther-sub001/internal/events"
	"github.com/quanghuy1242/auther-sub001/internal/models"
	"github.com/quanghuy1242/auther-sub001/internal/utils/crypto"
	"github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultAPIKeyTTL = 90 * 24 * time.Hour

// APIKeyHandler issues and revokes API keys. Keys exist only under clients
// that allow them, and their permissions are validated against the client's
// resource allow-list.
type APIKeyHandler struct {
	db       *gorm.DB
	resolver *authz.AccessLevelResolver
	deps     *authz.DependencyChecker
	log      *logger.Logger
}

func NewAPIKeyHandler(db *gorm.DB, resolver *authz.AccessLevelResolver, deps *authz.DependencyChecker) *APIKeyHandler {
	return &APIKeyHandler{db: db, resolver: resolver, deps: deps, log: logger.New("APIKeyHandler")}
}

// CreateAPIKey issues a new API key under a client
// @Summary Create an API key
// @Description Issue a new API key. The raw key is returned once and never stored; requested permissions are checked against the client's allowed resources.
// @Tags apikeys
// @Accept json
// @Produce json
// @Param request body validator.APIKeyCreateRequest true "Key details"
// @Success 201 {object} map[string]interface{} "Raw key and metadata"
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /apikeys [post]
func (h *APIKeyHandler) CreateAPIKey(c echo.Context) error {
	var req validator.APIKeyCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	callerID, _ := c.Get("subjectID").(string)
	if err := h.resolver.RequireManage(c.Request().Context(), callerID, req.ClientID); err != nil {
		if err == authz.ErrPermissionDenied {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve access level"})
	}

	client, err := models.GetClientByClientID(req.ClientID, h.db)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Client not found"})
	}
	if !client.AllowsAPIKeys {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Client does not allow API keys"})
	}

	permissions := req.Permissions
	if len(permissions) == 0 {
		// Fall back to the client's default key permissions
		if len(client.DefaultAPIKeyPermissions) > 0 {
			if err := json.Unmarshal(client.DefaultAPIKeyPermissions, &permissions); err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Client default permissions are malformed"})
			}
		}
	}

	if invalid := h.invalidAgainstAllowList(client, permissions); len(invalid) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Permissions not allowed for this client: " + strings.Join(invalid, ", "),
		})
	}

	rawKey, keyHash, err := crypto.GenerateAPIKey()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate key"})
	}

	permsJSON, err := json.Marshal(permissions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to encode permissions"})
	}

	ttl := defaultAPIKeyTTL
	if req.TTLHours > 0 {
		ttl = time.Duration(req.TTLHours) * time.Hour
	}

	key := models.APIKey{
		Name:        req.Name,
		KeyHash:     keyHash,
		ClientID:    req.ClientID,
		Permissions: datatypes.JSON(permsJSON),
		ExpiresAt:   time.Now().Add(ttl),
	}

	if err := h.db.Create(&key).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create API key"})
	}

	events.Emit("apikeys.created", &key)

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":              key.ID,
		"key":             rawKey,
		"name":            key.Name,
		"oauth_client_id": key.ClientID,
		"permissions":     permissions,
		"expiresAt":       key.ExpiresAt,
	})
}

// ListAPIKeys lists a client's API keys
// @Summary List API keys
// @Tags apikeys
// @Produce json
// @Param clientId path string true "Client ID"
// @Success 200 {array} models.APIKey
// @Failure 403 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /apikeys/{clientId} [get]
func (h *APIKeyHandler) ListAPIKeys(c echo.Context) error {
	clientID := c.Param("clientId")
	callerID, _ := c.Get("subjectID").(string)
	if err := h.resolver.RequireManage(c.Request().Context(), callerID, clientID); err != nil {
		if err == authz.ErrPermissionDenied {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve access level"})
	}

	var keys []models.APIKey
	if err := h.db.Where("client_id = ? AND is_deleted = false", clientID).Find(&keys).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list API keys"})
	}
	return c.JSON(http.StatusOK, keys)
}

// RevokeAPIKey soft-deletes an API key and its tuples
// @Summary Revoke an API key
// @Description Revoke an API key. The key's scoped permission tuples are removed alongside it; the count of removed grants is reported.
// @Tags apikeys
// @Produce json
// @Param id path string true "API key ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /apikeys/{id} [delete]
func (h *APIKeyHandler) RevokeAPIKey(c echo.Context) error {
	id := c.Param("id")

	var key models.APIKey
	if err := h.db.Where("id = ? AND is_deleted = false", id).First(&key).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "API key not found"})
	}

	callerID, _ := c.Get("subjectID").(string)
	if err := h.resolver.RequireManage(c.Request().Context(), callerID, key.ClientID); err != nil {
		if err == authz.ErrPermissionDenied {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Permission denied"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to resolve access level"})
	}

	tupleCount, err := h.deps.CheckAPIKeyDependencies(c.Request().Context(), models.SubjectTypeAPIKey, key.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to check key dependencies"})
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if _, err := authz.NewTupleStore(tx).Delete(c.Request().Context(), authz.TupleFilter{
			SubjectType: models.SubjectTypeAPIKey,
			SubjectID:   key.ID,
		}); err != nil {
			return err
		}
		return tx.Model(&key).Update("is_deleted", true).Error
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to revoke API key"})
	}

	events.Emit("apikeys.revoked", &key)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "API key revoked",
		"removedGrants": tupleCount,
	})
}

// invalidAgainstAllowList returns the requested "resource:action" strings the
// client's allow-list does not cover. A client with no allow-list accepts
// anything.
func (h *APIKeyHandler) invalidAgainstAllowList(client *models.Client, permissions []string) []string {
	if len(client.AllowedResources) == 0 {
		return nil
	}
	var allowed map[string][]string
	if err := json.Unmarshal(client.AllowedResources, &allowed); err != nil {
		h.log.Warn("client %s has malformed allowed resources: %v", client.ClientID, err)
		return nil
	}

	var invalid []string
	for _, perm := range permissions {
		resource, action, found := strings.Cut(perm, ":")
		if !found {
			invalid = append(invalid, perm)
			continue
		}
		actions, ok := allowed[resource]
		if !ok {
			invalid = append(invalid, perm)
			continue
		}
		valid := false
		for _, a := range actions {
			if a == action || a == "*" {
				valid = true
				break
			}
		}
		if !valid {
			invalid = append(invalid, perm)
		}
	}
	return invalid
}
