package api

import (
	"errors"
	"net/http"

	"ice-inventory/internal/service"
	"ice-inventory/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP status codes. ReactivationError
// is checked first because it wraps the not-found and shortfall errors.
func statusFor(err error) int {
	var (
		re  *service.ReactivationError
		ve  *service.ValidationError
		ise *service.InsufficientStockError
		dup *service.DuplicateSizeError
	)
	switch {
	case errors.As(err, &re):
		return http.StatusConflict
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &dup), errors.Is(err, service.ErrOrderInFlight), errors.Is(err, service.ErrIdempotencyKeyReused):
		return http.StatusConflict
	case errors.As(err, &ise):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrStockItemNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	body := gin.H{
		"error":   message,
		"details": err.Error(),
	}

	var (
		re  *service.ReactivationError
		ise *service.InsufficientStockError
	)
	switch {
	case errors.As(err, &re):
		body["required"] = re.Required
		body["available"] = re.Available
	case errors.As(err, &ise):
		body["required"] = ise.Required
		body["available"] = ise.Available
	}

	if status == http.StatusInternalServerError {
		util.GetLogger().Error(message,
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body["details"] = "internal error"
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
