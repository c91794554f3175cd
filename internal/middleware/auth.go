package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"encounter/internal/config"
)

// Clés de contexte posées par AuthMiddleware
const (
	ContextPlayerID = "player_id"
	ContextUsername = "username"
	ContextClaims   = "jwt_claims"
)

// JWTClaims représente les claims du JWT
type JWTClaims struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware crée le middleware d'authentification JWT.
// Le token est lu dans l'en-tête Authorization, ou dans le paramètre token pour les WebSockets.
func AuthMiddleware(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      err.Error(),
				"request_id": c.GetString(ContextRequestID),
			})
			return
		}

		claims, err := validateJWT(tokenString, cfg.Secret)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err.Error(),
				"ip":         c.ClientIP(),
				"user_agent": c.Request.UserAgent(),
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(ContextRequestID),
			}).Warn("JWT validation failed")

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Invalid or expired token",
				"request_id": c.GetString(ContextRequestID),
			})
			return
		}

		c.Set(ContextPlayerID, claims.PlayerID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextClaims, claims)

		logrus.WithFields(logrus.Fields{
			"player_id":  claims.PlayerID,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"request_id": c.GetString(ContextRequestID),
		}).Debug("Player authenticated")

		c.Next()
	}
}

// PlayerID retourne le joueur authentifié de la requête
func PlayerID(c *gin.Context) string {
	return c.GetString(ContextPlayerID)
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("authorization header required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}

// validateJWT valide et parse un token JWT
func validateJWT(tokenString, secret string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Les tokens émis par le service d'auth portent parfois le joueur dans sub
	if claims.PlayerID == "" {
		claims.PlayerID = claims.Subject
	}
	if claims.PlayerID == "" {
		return nil, fmt.Errorf("missing player_id in token")
	}

	return claims, nil
}
