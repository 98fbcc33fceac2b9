package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duynhne/profile-service/internal/core/domain"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
)

// TokenVerifier validates access tokens and returns the identity ID.
type TokenVerifier interface {
	Verify(accessToken string) (int64, error)
}

// IdentityGetter loads the identity an access token was issued for.
type IdentityGetter interface {
	GetIdentity(ctx context.Context, id int64) (*domain.Identity, error)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": message})
}

// AuthMiddleware requires a valid "Bearer <access token>" header and an
// active identity behind it. It stores the identity and its ID in the gin
// context for handlers.
func AuthMiddleware(verifier TokenVerifier, identities IdentityGetter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Autenticación requerida")
			return
		}

		// Extract token from "Bearer <token>"
		scheme, accessToken, ok := strings.Cut(authHeader, " ")
		accessToken = strings.TrimSpace(accessToken)
		if !ok || !strings.EqualFold(scheme, "Bearer") || accessToken == "" {
			abortUnauthorized(c, "Encabezado de autorización inválido")
			return
		}

		userID, err := verifier.Verify(accessToken)
		if err != nil {
			logger.Debug("Access token rejected", zap.Error(err))
			abortUnauthorized(c, "Token inválido o expirado")
			return
		}

		identity, err := identities.GetIdentity(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				abortUnauthorized(c, "Token inválido o expirado")
				return
			}
			logger.Error("Failed to load identity", zap.Int64("user_id", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Error interno del servidor"})
			return
		}
		if !identity.IsActive {
			abortUnauthorized(c, "Cuenta desactivada")
			return
		}

		c.Set(ContextUserID, identity.ID)
		c.Set(ContextIdentity, identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by AuthMiddleware.
func IdentityFromContext(c *gin.Context) (*domain.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}
