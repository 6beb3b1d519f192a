package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lexatlas/legalrisk/config"
	"github.com/lexatlas/legalrisk/pkg/logger"
)

// Context keys under which the authenticated identity is stored.
const (
	ContextUsername = "username"
	ContextTenant   = "tenant"
)

// Claims carries the authenticated user and the tenant whose documents the
// token may touch. Every store read downstream is scoped by the tenant claim.
type Claims struct {
	Username string `json:"username"`
	Tenant   string `json:"tenant"`
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 token for the user, valid for the configured
// number of hours.
func GenerateToken(username, tenant string, cfg *config.AuthConfig) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		Username: username,
		Tenant:   tenant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// AuthMiddleware guards the document API. It validates the bearer token and
// makes the username and tenant available to handlers and to log lines
// emitted through the request context.
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" {
			abortUnauthorized(c, "Authorization header must be a bearer token")
			return
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUsername, claims.Username)
		c.Set(ContextTenant, claims.Tenant)

		ctx := context.WithValue(c.Request.Context(), logger.UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, logger.TenantKey, claims.Tenant)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// GetUsername returns the authenticated username, or "" on public routes.
func GetUsername(c *gin.Context) string {
	if v, ok := c.Get(ContextUsername); ok {
		return v.(string)
	}
	return ""
}

// GetTenant returns the tenant the request is scoped to, or "" on public routes.
func GetTenant(c *gin.Context) string {
	if v, ok := c.Get(ContextTenant); ok {
		return v.(string)
	}
	return ""
}
