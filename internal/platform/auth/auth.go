// Package auth guards the admin and service endpoints. The public turn
// endpoint stays unauthenticated; session/event audit, metrics and catalog
// operations require either the configured admin API key or an HS256 bearer
// token issued by a trusted service.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// HashKey returns the hex SHA-256 of a raw API key. Only hashes are held in
// memory after startup.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Config holds the credentials accepted by the middleware.
type Config struct {
	APIKeyHash string // hex SHA-256 of the admin key; empty disables key auth
	JWTSecret  string // HS256 secret; empty disables bearer auth
	JWTIssuer  string
}

// Enabled reports whether any credential is configured. With nothing
// configured the middleware rejects everything, so a misconfigured
// deployment fails closed.
func (c Config) Enabled() bool { return c.APIKeyHash != "" || c.JWTSecret != "" }

// Middleware authenticates via X-API-Key or an Authorization bearer token.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key := c.Request().Header.Get("X-API-Key"); key != "" && cfg.APIKeyHash != "" {
				if subtle.ConstantTimeCompare([]byte(HashKey(key)), []byte(cfg.APIKeyHash)) == 1 {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}

			header := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") && cfg.JWTSecret != "" {
				if err := validateToken(cfg, strings.TrimPrefix(header, "Bearer ")); err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
				}
				return next(c)
			}

			return echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
		}
	}
}

func validateToken(cfg Config, raw string) error {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if cfg.JWTIssuer != "" {
		issuer, err := token.Claims.GetIssuer()
		if err != nil || issuer != cfg.JWTIssuer {
			return fmt.Errorf("invalid issuer")
		}
	}
	return nil
}
