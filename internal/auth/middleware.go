// Package auth issues and validates the HMAC-signed bearer tokens that gate
// registry administration. Tokens are short-lived and carry an explicit role
// and token type so a leaked token from another system cannot be replayed
// against the admin surface.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/logger"
)

// AdminClaims represents the expected structure of the admin JWT claims
type AdminClaims struct {
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// IssueAdminToken mints a signed admin token for the given subject.
// Used by operator tooling and tests; the server only validates.
func IssueAdminToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role:      constants.AdminRole,
		TokenType: constants.AdminTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAdminToken validates the bearer token and returns its claims.
func ValidateAdminToken(secret, tokenString string) (*AdminClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != constants.AdminTokenType {
		return nil, ErrInvalidToken
	}
	if claims.Role != constants.AdminRole {
		return nil, ErrNotAdmin
	}

	return claims, nil
}

// RequireAdmin gates a route group behind a valid admin bearer token.
// On success the token subject is stored in the Gin context as "adminSubject".
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug("Authentication failed",
				zap.String("reason", "no authentication header provided"),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			c.Abort()
			return
		}

		claims, err := ValidateAdminToken(secret, authHeader)
		if err != nil {
			logger.Debug("Admin token validation failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			c.Abort()
			return
		}

		c.Set("adminSubject", claims.Subject)
		c.Set("role", claims.Role)

		c.Next()
	}
}
