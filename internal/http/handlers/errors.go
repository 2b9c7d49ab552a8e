package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/yungbote/mediaforge-backend/internal/domain/jobs"
	"github.com/yungbote/mediaforge-backend/internal/http/response"
	"github.com/yungbote/mediaforge-backend/internal/platform/apierr"
	"github.com/yungbote/mediaforge-backend/internal/platform/gcp"
	"github.com/yungbote/mediaforge-backend/internal/services"
)

var (
	errNotAuthenticated = errors.New("not authenticated")
	errInternal         = errors.New("internal server error")
)

// toAPIError maps service errors onto HTTP status and code.
func toAPIError(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var se *gcp.StorageError
	if errors.As(err, &se) {
		return apierr.Internal("storage_failure", err)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return apierr.NotFound("job_not_found", err)
	case errors.Is(err, domain.ErrForbidden):
		return apierr.Forbidden("forbidden", err)
	case errors.Is(err, domain.ErrUnsupportedJobType):
		return apierr.BadRequest("unsupported_job_type", err)
	case errors.Is(err, domain.ErrJobNotCompleted):
		return apierr.BadRequest("job_not_completed", err)
	case errors.Is(err, domain.ErrAssetMissing):
		return apierr.NotFound("asset_not_found", err)
	case errors.Is(err, domain.ErrValidation):
		return apierr.BadRequest("invalid_request", err)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apierr.Conflict("invalid_transition", err)
	case errors.Is(err, services.ErrDispatchUnavailable):
		return apierr.Unavailable("dispatch_unavailable", err)
	default:
		return apierr.Internal("internal", err)
	}
}

// respondErr writes the error envelope. Server-side failures are recorded on
// the gin context for the request logger and never echoed to the client.
func respondErr(c *gin.Context, err error) {
	ae := toAPIError(err)
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		_ = c.Error(err)
		response.RespondError(c, status, ae.Code, errInternal)
		return
	}
	response.RespondError(c, status, ae.Code, ae)
}
