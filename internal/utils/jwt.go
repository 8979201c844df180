package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/quanghuy1242/auther-sub001/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

const tokenIssuer = "auther"

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

// accessTokenTTL reads JWT_EXPIRY (hours), defaulting to 24
func accessTokenTTL() time.Duration {
	if hours, err := strconv.Atoi(os.Getenv("JWT_EXPIRY")); err == nil && hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return 24 * time.Hour
}

func signClaims(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret())
}

func parseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// GenerateJWT issues a short-lived access token carrying the user's role
func GenerateJWT(user models.User) (string, error) {
	return signClaims(Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, accessTokenTTL())
}

// ParseJWT parses and validates an access token
func ParseJWT(tokenString string) (*Claims, error) {
	return parseClaims(tokenString)
}

// GenerateRefreshToken issues a week-long token carrying only the user id
func GenerateRefreshToken(user models.User) (string, error) {
	return signClaims(Claims{UserID: user.ID}, 7*24*time.Hour)
}

// ParseRefreshToken parses and validates a refresh token
func ParseRefreshToken(tokenString string) (*Claims, error) {
	return parseClaims(tokenString)
}
