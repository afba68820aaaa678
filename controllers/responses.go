package controllers

import (
	"net/http"

	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// responder writes the JSON envelope shared by every handler
type responder struct {
	logger      *logrus.Logger
	showDetails bool // include error causes; disabled in production
}

func newResponder(logger *logrus.Logger, production bool) responder {
	return responder{logger: logger, showDetails: !production}
}

func (r responder) ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// fail maps a service error to its HTTP status and writes it
func (r responder) fail(c *gin.Context, err error) {
	svcErr := services.AsServiceError(err)
	status := statusForKind(svcErr.Kind)

	body := gin.H{
		"code":    svcErr.Code,
		"message": svcErr.Message,
	}
	if r.showDetails && svcErr.Err != nil {
		body["details"] = svcErr.Err.Error()
	}

	if status >= http.StatusInternalServerError {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"path": c.FullPath(),
			"code": svcErr.Code,
		}).Error("Request failed")
	}
	_ = c.Error(err)

	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// invalid reports a request body or query that could not be bound
func (r responder) invalid(c *gin.Context, err error) {
	body := gin.H{
		"code":    services.ErrValidation.Code,
		"message": services.ErrValidation.Message,
	}
	if r.showDetails {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

func (r responder) unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Could not extract user information",
		},
	})
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindSignature:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
