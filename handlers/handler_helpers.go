package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trends-backend/logging"
	"trends-backend/models"
)

// =============================================================================
// Response Helpers
// =============================================================================

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, code int, error, message string) {
	c.JSON(code, models.ErrorResponse{
		Error:   error,
		Message: message,
		Code:    code,
	})
}

// respondBadRequest sends a 400 error response
func respondBadRequest(c *gin.Context, message string) {
	respondWithError(c, http.StatusBadRequest, "Invalid request", message)
}

// respondInternalError sends a 500 error response
func respondInternalError(c *gin.Context, message string) {
	respondWithError(c, http.StatusInternalServerError, "Internal error", message)
}

// respondUnavailable sends a 503 error response
func respondUnavailable(c *gin.Context, message string) {
	respondWithError(c, http.StatusServiceUnavailable, "Upstream unavailable", message)
}

// =============================================================================
// Error Mapping
// =============================================================================

// respondServiceError maps service errors onto HTTP responses
func respondServiceError(c *gin.Context, err error) {
	var ie *models.InputError
	var pe *models.ProviderError
	switch {
	case errors.As(err, &ie):
		respondBadRequest(c, ie.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful can be written
		c.Status(499)
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(c, http.StatusGatewayTimeout, "Timeout", "request timed out")
	case errors.As(err, &pe):
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("provider error")
		respondUnavailable(c, pe.Error())
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		respondInternalError(c, "unexpected error")
	}
}
