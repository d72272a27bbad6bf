package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "repaytrack/internal/errors"
	"repaytrack/internal/logger"
	"repaytrack/internal/validator"
)

// parseID parses a positive integer path parameter. Anything else cannot
// name a stored record, so callers answer it like an unknown id.
func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes and validates the request body into obj. The returned
// error names the first offending field.
func bindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		field, message := validator.Describe(err)
		return apperrors.WithField(apperrors.ErrInvalidInput, field, message)
	}
	return nil
}

// respondWithError writes client errors directly. Server errors are handed
// to the ErrorHandler middleware, which logs them and answers with a generic
// message.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		logger.Get().Debugw("request rejected",
			"code", appErr.Code,
			"message", appErr.Message,
			"path", c.Request.URL.Path,
		)
		c.JSON(appErr.StatusCode, appErr)
		return
	}

	_ = c.Error(err)
	c.Abort()
}
