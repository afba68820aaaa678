package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CreateUserRequest represents the request body for provisioning a profile.
// Name and email fall back to the token's claims.
type CreateUserRequest struct {
	Name  string `json:"name" binding:"omitempty"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty"`
}

// UserController serves the /users endpoints
type UserController struct {
	users repository.UserRepository
	responder
}

// NewUserController creates the user handlers
func NewUserController(users repository.UserRepository, logger *logrus.Logger, production bool) *UserController {
	return &UserController{users: users, responder: newResponder(logger, production)}
}

// CreateUser handles POST /api/v1/users - creates the profile for the
// token subject
func (uc *UserController) CreateUser(c *gin.Context) {
	subject, err := middleware.GetSubject(c)
	if err != nil {
		uc.unauthorized(c)
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		uc.invalid(c, err)
		return
	}

	claims := middleware.GetCustomClaims(c)
	user := models.User{
		AuthSubject: subject,
		Name:        firstNonEmpty(req.Name, claims.Name),
		Email:       firstNonEmpty(req.Email, claims.Email),
		Phone:       req.Phone,
		Role:        models.RoleUser,
	}
	if claims.Role == models.RoleAdmin {
		user.Role = models.RoleAdmin
	}

	if user.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_EMAIL",
				"message": "Email not provided in request or token",
			},
		})
		return
	}
	if user.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_NAME",
				"message": "Name not provided in request or token",
			},
		})
		return
	}

	if _, err := uc.users.FindBySubject(c.Request.Context(), subject); err == nil {
		uc.userExists(c)
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		uc.logger.WithError(err).Error("Failed to look up user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create user",
			},
		})
		return
	}

	if err := uc.users.Create(c.Request.Context(), &user); err != nil {
		// Check for duplicate email (works with both PostgreSQL and SQLite)
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique") {
			uc.userExists(c)
			return
		}

		uc.logger.WithError(err).Error("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create user",
			},
		})
		return
	}

	uc.ok(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (uc *UserController) GetMyProfile(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		uc.unauthorized(c)
		return
	}
	uc.ok(c, http.StatusOK, user)
}

func (uc *UserController) userExists(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "USER_EXISTS",
			"message": "A user with this account or email already exists",
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
