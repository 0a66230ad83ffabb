package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deskmate/deskmate-backend/internal/http/response"
	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
)

// respondServiceError maps the error taxonomy onto HTTP statuses: BadInput
// is the caller's fault, an over-limit body is 413, everything else
// (provider and store failures during mutation) is internal.
func respondServiceError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", err)
		return
	}

	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierr.KindBadInput:
			response.RespondError(c, http.StatusBadRequest, apiErr.Code, err)
			return
		default:
			response.RespondError(c, http.StatusInternalServerError, apiErr.Code, err)
			return
		}
	}

	response.RespondError(c, http.StatusInternalServerError, "internal_error", err)
}

// wrapBindError keeps over-limit reads as 413 and treats every other bind
// failure as the caller's malformed payload.
func wrapBindError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return apierr.BadInput("invalid_payload", err)
}
