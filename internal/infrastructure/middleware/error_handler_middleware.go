package middleware

import (
	stderrors "errors"
	"net/http"

	"liveclass/internal/core/domain"
	"liveclass/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MapDomainError lifts a sentinel from the domain layer into an AppError
// with the HTTP status the transport should return.
func MapDomainError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, domain.ErrCourseNotFound):
		return errors.NewNotFoundError("course")
	case stderrors.Is(err, domain.ErrSessionNotFound):
		return errors.NewNotFoundError("live session")
	case stderrors.Is(err, domain.ErrUserNotFound):
		return errors.NewNotFoundError("user")
	case stderrors.Is(err, domain.ErrForbidden):
		return errors.NewForbiddenError("not allowed")
	case stderrors.Is(err, domain.ErrSessionEnded):
		return errors.NewInvalidStateError("live session already ended")
	default:
		return nil
	}
}

// ErrorHandlerMiddleware turns errors attached to the gin context into
// structured JSON responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = MapDomainError(err)
		}
		if appErr != nil {
			logger.Warnw("request failed",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
			})
			return
		}

		logger.Errorw("unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(errors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
