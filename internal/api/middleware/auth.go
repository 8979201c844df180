package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/db"
	"github.com/quanghuy1242/auther-sub001/internal/models"
	"github.com/quanghuy1242/auther-sub001/internal/utils"
	"github.com/quanghuy1242/auther-sub001/internal/utils/crypto"
	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

var log = console.New("auth_middleware")

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Middleware authenticates a request either via a Bearer JWT (human users)
// or via an X-API-KEY header (machine callers). API key callers are resolved
// to their owning client and identified as apikey subjects downstream.
func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey := c.Request().Header.Get("X-API-KEY"); apiKey != "" {
				return m.validateAPIKey(c, apiKey, next)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims := &utils.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		log.Error("Error parsing JWT token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	}

	// Verify auth transaction
	transaction := &models.AuthTransaction{}
	if err := db.DB.Where("user_id = ? AND token = ?",
		claims.UserID, tokenString).First(transaction).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Auth transaction not found")
	}

	// Verify user exists
	user := &models.User{}
	if err := db.DB.Where("id = ?", claims.UserID).First(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	c.Set("subjectType", string(models.SubjectTypeUser))
	c.Set("subjectID", user.ID)
	c.Set("email", user.Email)
	c.Set("role", string(user.Role))
	c.Set("isAPIKey", false)
	if user.Role == models.UserRoleAdmin || user.Role == models.UserRoleSuperAdmin {
		c.Set("hasAdminAccess", true)
	}

	return next(c)
}

func (m *AuthMiddleware) validateAPIKey(c echo.Context, rawKey string, next echo.HandlerFunc) error {
	key, err := models.GetAPIKeyByHash(crypto.HashAPIKey(rawKey), db.DB)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
	}

	if key.Expired() {
		return echo.NewHTTPError(http.StatusUnauthorized, "API key has expired")
	}

	var permissions []string
	if len(key.Permissions) > 0 {
		if err := json.Unmarshal(key.Permissions, &permissions); err != nil {
			log.Warn("API key %s carries malformed permissions: %v", key.ID, err)
		}
	}

	c.Set("permissions", permissions)
	c.Set("subjectType", string(models.SubjectTypeAPIKey))
	c.Set("subjectID", key.ID)
	c.Set("clientID", key.ClientID)
	c.Set("isAPIKey", true)

	return next(c)
}

// GetSubjectType returns the authenticated caller's subject type (user or apikey)
func GetSubjectType(c echo.Context) string {
	if st, ok := c.Get("subjectType").(string); ok {
		return st
	}
	return ""
}

// GetSubjectID returns the authenticated caller's subject id
func GetSubjectID(c echo.Context) string {
	if id, ok := c.Get("subjectID").(string); ok {
		return id
	}
	return ""
}

func GetUserRole(c echo.Context) string {
	if role, ok := c.Get("role").(string); ok {
		return role
	}
	return ""
}

func GetClientID(c echo.Context) string {
	if id, ok := c.Get("clientID").(string); ok {
		return id
	}
	return ""
}

func IsAPIKey(c echo.Context) bool {
	if isAPIKey, ok := c.Get("isAPIKey").(bool); ok {
		return isAPIKey
	}
	return false
}
