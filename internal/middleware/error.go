package middleware

import (
	"fmt"

	"github.com/GoPolymarket/tradevault/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradevault/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := apperrors.Wrap(c.Errors.Last().Err)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}
		if caller, ok := CallerFrom(c); ok {
			logFields = append(logFields, "caller", caller.Hex())
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// Recovery turns a handler panic into a SYSTEM_PANIC response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := apperrors.New(apperrors.ErrSystemPanic, "internal panic", fmt.Errorf("%v", r))
				logger.LogError(c.Request.Context(), err, "panic recovered", "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(err.HTTPStatus, err)
			}
		}()
		c.Next()
	}
}
