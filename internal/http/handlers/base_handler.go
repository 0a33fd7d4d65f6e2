// README: Base handler utilities (JSON helpers, caller identity, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/archive"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

const maxListLimit = 200

// isValidID accepts uuids and the short slugs used for driver ids.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// pathID reads :id and answers 400 itself when it is malformed.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func limitParam(c *gin.Context, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func driverActor(c *gin.Context) ride.Actor {
	return ride.DriverActor(types.ID(middleware.CallerUID(c)))
}

func adminActor(c *gin.Context) ride.Actor {
	return ride.Admin(types.ID(middleware.CallerUID(c)))
}

// writeRideError maps the ride error taxonomy onto status codes. Eligibility and
// window failures carry their reason so clients can show it inline.
func writeRideError(c *gin.Context, err error) {
	var (
		denied  *ride.DeniedError
		invalid *ride.ValidationError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "invalid request", Fields: invalid.Fields})
	case errors.Is(err, ride.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrInvalidState), errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrNotConfirmed), errors.Is(err, ride.ErrAlreadyConfirmed):
		writeError(c, http.StatusConflict, err.Error())
	case errors.As(err, &denied):
		writeJSON(c, http.StatusUnprocessableEntity, errorResponse{Error: ride.ErrDenied.Error(), Reason: denied.Reason})
	case errors.Is(err, ride.ErrWindow):
		writeJSON(c, http.StatusUnprocessableEntity, errorResponse{Error: ride.ErrWindow.Error(), Reason: err.Error()})
	default:
		writeServerError(c, err)
	}
}

func writeDriverError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, driver.ErrBadRequest), errors.Is(err, driver.ErrUnknownVehicle):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeServerError(c, err)
	}
}

func writeArchiveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, archive.ErrBadMonth):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, archive.ErrAlreadyRunning):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeServerError(c, err)
	}
}

func writePricingError(c *gin.Context, err error) {
	if errors.Is(err, pricing.ErrNoRate) {
		writeError(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeServerError(c, err)
}

// writeServerError hides the cause from the client; the logging middleware reports it.
func writeServerError(c *gin.Context, err error) {
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal error")
}
