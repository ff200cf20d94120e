package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamforge/teamforge/internal/errs"
	"github.com/teamforge/teamforge/pkg/logger"
	"github.com/teamforge/teamforge/pkg/response"
)

// Application codes for the 409 family. Clients use these to distinguish
// conflict flavors that share an HTTP status.
const (
	codeConflict     = 409
	codeCapacity     = 4091
	codeInvalidState = 4092
)

// handleError maps a domain error to its HTTP representation. Anything
// outside the taxonomy is an infrastructure failure and becomes a 500.
func handleError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		response.BadRequest(c, err.Error())
	case errs.IsNotFound(err):
		response.NotFound(c, err.Error())
	case errs.IsForbidden(err):
		response.Forbidden(c, err.Error())
	case errs.IsConflict(err):
		response.ErrorWithCode(c, http.StatusConflict, codeConflict, err.Error())
	case errs.IsCapacityExceeded(err):
		response.ErrorWithCode(c, http.StatusConflict, codeCapacity, err.Error())
	case errs.IsInvalidState(err):
		response.ErrorWithCode(c, http.StatusConflict, codeInvalidState, err.Error())
	default:
		logger.Errorf("[API] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		response.ServerError(c, "internal server error")
	}
}
