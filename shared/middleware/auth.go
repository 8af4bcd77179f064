package middleware

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/clinigo/clinic-platform/shared/utils"
)

// AuthMiddleware validates bearer tokens for the administrative console
type AuthMiddleware struct {
	validator *utils.JWKSValidator
}

// PlatformClaims are the JWT claims issued by the platform's identity provider
type PlatformClaims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware creates the middleware from the JWKS_URL environment
// variable
func NewAuthMiddleware() (*AuthMiddleware, error) {
	jwksURL := os.Getenv("JWKS_URL")
	if jwksURL == "" {
		return nil, fmt.Errorf("JWKS_URL must be set")
	}

	return &AuthMiddleware{
		validator: utils.NewJWKSValidator(jwksURL),
	}, nil
}

// RequireAuth validates the bearer token and stores the caller's identity
// in the request context
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.UnauthorizedResponse(c, "Bearer token required")
			c.Abort()
			return
		}

		claims := &PlatformClaims{}
		if err := am.validator.ValidateToken(tokenString, claims); err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		if claims.ClinicID != "" {
			c.Set("clinic_id", claims.ClinicID)
		}

		c.Next()
	}
}

// RequireRole allows only callers carrying the given role
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			utils.ForbiddenResponse(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireClinicAccess allows platform admins, or callers whose token is
// bound to the clinic named in the :id route parameter
func (am *AuthMiddleware) RequireClinicAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") == "admin" {
			c.Next()
			return
		}
		if c.GetString("clinic_id") != c.Param("id") {
			utils.ForbiddenResponse(c, "Access to this clinic is not allowed")
			c.Abort()
			return
		}
		c.Next()
	}
}
