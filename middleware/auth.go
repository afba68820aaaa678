package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/bamboo-bazaar/storefront-api/config"
	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by EnsureValidToken
const (
	SubjectKey = "auth_subject"
	ClaimsKey  = "validated_claims"
)

// CustomClaims contains the non-registered claims we read from the token.
type CustomClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Validate rejects tokens carrying a role we do not know.
func (c CustomClaims) Validate(ctx context.Context) error {
	switch c.Role {
	case "", models.RoleUser, models.RoleAdmin:
		return nil
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
}

// NewTokenValidator builds the JWT validator. With an Auth0 tenant
// configured tokens are RS256 and checked against its JWKS; otherwise they
// are HS256 signed with JWT_SECRET.
func NewTokenValidator(cfg *config.Config) (*validator.Validator, error) {
	customClaims := validator.WithCustomClaims(func() validator.CustomClaims {
		return &CustomClaims{}
	})
	clockSkew := validator.WithAllowedClockSkew(time.Minute)

	if cfg.UsesAuth0() {
		issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
		if err != nil {
			return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
		}
		provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

		v, err := validator.New(
			provider.KeyFunc,
			validator.RS256,
			issuerURL.String(),
			[]string{cfg.Auth0Audience},
			customClaims,
			clockSkew,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
		}
		return v, nil
	}

	secret := []byte(cfg.JWTSecret)
	v, err := validator.New(
		func(ctx context.Context) (interface{}, error) { return secret, nil },
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		customClaims,
		clockSkew,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}
	return v, nil
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(v *validator.Validator, logger *logrus.Logger) gin.HandlerFunc {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithError(err).WithField("path", r.URL.Path).Warn("Encountered error while validating JWT")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			logger.WithError(writeErr).Error("Failed to write error response")
		}
	}

	middleware := jwtmiddleware.New(
		v.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		validated := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			validated = true

			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			c.Set(SubjectKey, token.RegisteredClaims.Subject)
			c.Set(ClaimsKey, token)
			c.Request = r

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)

		// CheckJWT already wrote the 401; stop the rest of the chain.
		if !validated {
			c.Abort()
		}
	}
}

// GetSubject extracts the token subject from the Gin context
func GetSubject(c *gin.Context) (string, error) {
	subject, exists := c.Get(SubjectKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_SUBJECT", Message: "Token subject not found in context"}
	}

	subjectStr, ok := subject.(string)
	if !ok || subjectStr == "" {
		return "", &AuthError{Code: "INVALID_SUBJECT", Message: "Token subject is not a string"}
	}

	return subjectStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetCustomClaims returns the custom claims of the validated token, or an
// empty set when the token carried none
func GetCustomClaims(c *gin.Context) CustomClaims {
	claims, err := GetClaims(c)
	if err != nil {
		return CustomClaims{}
	}
	if custom, ok := claims.CustomClaims.(*CustomClaims); ok && custom != nil {
		return *custom
	}
	return CustomClaims{}
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
