package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spectraquiz/api-gateway/internal/apierror"
	"github.com/spectraquiz/api-gateway/internal/models"
)

// ContextUserID carries the authenticated admin's user id.
const ContextUserID = "user_id"

// SessionValidator is the slice of AuthService the admin guard needs.
type SessionValidator interface {
	ValidateToken(tokenString string) (jwt.MapClaims, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireAdmin gates the key-issuance console: the caller must hold a valid
// session AND the user record behind it must carry the "admin" role. Exact
// set membership - "administrator" does not count.
//
// A missing user record and a lookup failure both answer 403 "Access denied",
// worded apart from the non-admin 403 on purpose.
func RequireAdmin(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierror.Abort(c, apierror.New(apierror.CodeUnauthorized, "Authentication required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			apierror.Abort(c, apierror.New(apierror.CodeUnauthorized, "Invalid authorization header format. Use: Bearer <token>"))
			return
		}

		claims, err := sessions.ValidateToken(parts[1])
		if err != nil {
			apierror.Abort(c, apierror.New(apierror.CodeUnauthorized, "Invalid or expired session"))
			return
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			apierror.Abort(c, apierror.New(apierror.CodeUnauthorized, "Invalid or expired session"))
			return
		}

		user, err := sessions.GetUserByID(c.Request.Context(), userID)
		if err != nil || user == nil {
			apierror.Abort(c, apierror.New(apierror.CodeForbidden, "Access denied"))
			return
		}

		if !user.HasRole("admin") {
			apierror.Abort(c, apierror.New(apierror.CodeForbidden, "Admin access required"))
			return
		}

		c.Set(ContextUserID, user.ID.String())

		c.Next()
	}
}
