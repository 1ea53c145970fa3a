package api

import (
	"errors"
	"net/http"

	"reelforge/state"
	"reelforge/tracker"
	"reelforge/types"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP statuses. Structured render
// errors are returned as-is so callers can act on code and class.
func respondError(c *gin.Context, err error) {
	var re *types.RenderError
	if errors.As(err, &re) {
		c.JSON(renderErrorStatus(re), gin.H{"error": re})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrRunNotFound), errors.Is(err, tracker.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, state.ErrRunExists), errors.Is(err, tracker.ErrJobNotFailed), errors.Is(err, tracker.ErrPaused):
		status = http.StatusConflict
	case errors.Is(err, tracker.ErrNoDispatcher):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": gin.H{"message": err.Error()}})
}

func renderErrorStatus(re *types.RenderError) int {
	switch re.Class {
	case types.ClassValidation:
		if re.Code == types.CodeNoEligibleEngine {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case types.ClassInfrastructure:
		return http.StatusServiceUnavailable
	case types.ClassTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
