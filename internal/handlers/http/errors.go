package http

import (
	"errors"
	"net/http"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/services"
	apperrors "relaychat/pkg/errors"

	"github.com/gin-gonic/gin"
)

var domainErrors = map[error]*apperrors.AppError{
	domain.ErrUserNotFound:       apperrors.NewNotFoundError("user"),
	domain.ErrEmailTaken:         apperrors.NewConflictError("email already exists"),
	domain.ErrInvalidCredentials: apperrors.NewInvalidInputError("invalid credentials"),
	services.ErrInvalidToken:     apperrors.NewUnauthorizedError("unauthorized - invalid token"),
	services.ErrExpiredToken:     apperrors.NewUnauthorizedError("unauthorized - token expired"),
	services.ErrUnauthorized:     apperrors.NewUnauthorizedError("unauthorized"),
}

// toAppError maps a service error onto its HTTP rendering. Input errors
// keep their own text so the client learns which field was wrong.
func toAppError(err error, mediaLimit int64) *apperrors.AppError {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return apperrors.NewPayloadTooLargeError(tooBig.Limit)
	case errors.Is(err, domain.ErrMediaTooLarge):
		return apperrors.NewPayloadTooLargeError(mediaLimit)
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidMedia),
		errors.Is(err, domain.ErrEmptyMessage):
		return apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	}
	return apperrors.Translate(err, domainErrors)
}

// bindJSON decodes the body into req, capped at limit bytes.
func bindJSON(c *gin.Context, req interface{}, limit int64) error {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	if err := c.ShouldBindJSON(req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return apperrors.NewInvalidInputError("invalid request format")
	}
	return nil
}

// bodyLimit allows a base64 data URL of maxMedia bytes plus some slack
// for the other fields.
func bodyLimit(maxMedia int64) int64 {
	if maxMedia <= 0 {
		return 0
	}
	return maxMedia*4/3 + 64*1024
}
