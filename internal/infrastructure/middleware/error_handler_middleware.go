package middleware

import (
	"net/http"

	"relaychat/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func abortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Response())
}

// ErrorHandlerMiddleware renders the last error a handler attached with
// c.Error. Handlers that already wrote a response are left alone.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = errors.WrapError(err, errors.ErrCodeInternal, "internal server error", http.StatusInternalServerError)
		}

		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.HTTPStatus,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		}
		if appErr.Cause != nil {
			fields = append(fields, "error", appErr.Cause)
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Errorw(appErr.Message, fields...)
		} else {
			logger.Debugw(appErr.Message, fields...)
		}

		c.JSON(appErr.HTTPStatus, appErr.Response())
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
				abortWithAppError(c, errors.NewInternalError("internal server error"))
			}
		}()

		c.Next()
	}
}
