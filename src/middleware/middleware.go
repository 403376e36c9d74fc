package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"interview-copilot-service/src/models"
	"interview-copilot-service/src/schemas"
)

// identityKey is the gin context key the authenticated identity is stored
// under.
const identityKey = "identity"

// Verifier authenticates a bearer token into a caller identity. Credential
// checks happen upstream of this service; the verifier only validates the
// token it is handed.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// AuthRequired rejects requests without a valid bearer token and attaches the
// verified identity to the request context.
func AuthRequired(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				schemas.NewUnauthorizedError("Authorization header missing", c.FullPath()))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				schemas.NewUnauthorizedError("Invalid authorization header format", c.FullPath()))
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil || !identity.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				schemas.NewUnauthorizedError("Invalid token", c.FullPath()))
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// AdminRequired rejects authenticated callers without the admin role. Must
// run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok || identity.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, schemas.NewForbiddenError(c.FullPath()))
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the authenticated identity attached by AuthRequired.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}
