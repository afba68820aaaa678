package testutil

import (
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Token settings shared by tests that go through the real JWT validator
const (
	TestJWTSecret   = "test-jwt-secret-0123456789abcdef"
	TestJWTIssuer   = "bamboo-bazaar"
	TestJWTAudience = "bamboo-bazaar-api"
)

// TokenOptions overrides parts of a minted token
type TokenOptions struct {
	Secret    string
	Issuer    string
	Audience  string
	Role      string
	ExpiresIn time.Duration
}

// MintToken signs an HS256 token for subject the way the login service does
func MintToken(t *testing.T, subject string, opts TokenOptions) string {
	t.Helper()

	if opts.Secret == "" {
		opts.Secret = TestJWTSecret
	}
	if opts.Issuer == "" {
		opts.Issuer = TestJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = TestJWTAudience
	}
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = 15 * time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"iss":   opts.Issuer,
		"aud":   []string{opts.Audience},
		"iat":   now.Unix(),
		"exp":   now.Add(opts.ExpiresIn).Unix(),
		"email": subject + "@example.com",
		"name":  "Token " + subject,
	}
	if opts.Role != "" {
		claims["role"] = opts.Role
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(opts.Secret))
	require.NoError(t, err)
	return token
}

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  TestJWTIssuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Role:  role,
			Email: subject + "@example.com",
		},
	}
}

// SetMockAuthContext marks c as authenticated for subject
func SetMockAuthContext(c *gin.Context, subject, role string) {
	c.Set(middleware.SubjectKey, subject)
	c.Set(middleware.ClaimsKey, MockValidatedClaims(subject, role))
}

// MockAuthMiddleware stands in for EnsureValidToken and RequireUser. A nil
// user leaves the request authenticated but without a loaded account.
func MockAuthMiddleware(subject string, user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.RoleUser
		if user != nil {
			role = user.Role
		}
		SetMockAuthContext(c, subject, role)
		if user != nil {
			c.Set(middleware.CurrentUserKey, user)
		}
		c.Next()
	}
}
