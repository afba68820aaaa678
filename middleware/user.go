package middleware

import (
	"errors"
	"net/http"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CurrentUserKey holds the *models.User set by RequireUser
const CurrentUserKey = "current_user"

// RequireUser loads the account registered for the token subject. It must
// run after EnsureValidToken.
func RequireUser(users repository.UserRepository, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := GetSubject(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}

		user, err := users.FindBySubject(c.Request.Context(), subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				abortWithError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
				return
			}
			logger.WithError(err).WithField("subject", subject).Error("Failed to load user")
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the account loaded by RequireUser
func CurrentUser(c *gin.Context) (*models.User, error) {
	value, exists := c.Get(CurrentUserKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "User not found in context"}
	}

	user, ok := value.(*models.User)
	if !ok {
		return nil, &AuthError{Code: "INVALID_USER", Message: "User is not in the expected format"}
	}

	return user, nil
}

// RequireRole lets the request through only when the current user has role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
			return
		}

		if user.Role != role {
			abortWithError(c, http.StatusForbidden, "INSUFFICIENT_ROLE", "Insufficient permissions to access this resource")
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
