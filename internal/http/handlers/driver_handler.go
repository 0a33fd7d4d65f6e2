// README: Driver dashboard handlers; the caller's Firebase uid is the driver id.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type DriverHandler struct {
	rides   *ride.Service
	records notify.RecordStore
}

func NewDriverHandler(rides *ride.Service, records notify.RecordStore) *DriverHandler {
	return &DriverHandler{rides: rides, records: records}
}

func (h *DriverHandler) ListAvailable(c *gin.Context) {
	rides, err := h.rides.ListAvailable(c.Request.Context())
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"rides": nonNil(rides)})
}

func (h *DriverHandler) ListMine(c *gin.Context) {
	rides, err := h.rides.ListByDriver(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"rides": nonNil(rides)})
}

func (h *DriverHandler) Accept(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := driverActor(c)
	r, err := h.rides.Accept(c.Request.Context(), ride.AcceptCommand{RideID: id, DriverID: actor.ID, Actor: actor})
	respondRide(c, r, err)
}

func (h *DriverHandler) GiveUp(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GiveUp(c.Request.Context(), ride.GiveUpCommand{RideID: id, Actor: driverActor(c)})
	respondRide(c, r, err)
}

func (h *DriverHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.ConfirmPickup(c.Request.Context(), ride.ConfirmCommand{RideID: id, Actor: driverActor(c)})
	respondRide(c, r, err)
}

func (h *DriverHandler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{RideID: id, Actor: driverActor(c)})
	respondRide(c, r, err)
}

func (h *DriverHandler) Reschedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var cmd ride.RescheduleCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd.RideID, cmd.Actor = id, driverActor(c)
	r, err := h.rides.Reschedule(c.Request.Context(), cmd)
	respondRide(c, r, err)
}

// Eligibility tells the calling driver whether they could accept the ride right now.
func (h *DriverHandler) Eligibility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.rides.CheckEligibility(c.Request.Context(), id, types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *DriverHandler) Notifications(c *gin.Context) {
	recs, err := h.records.ListForDriver(c.Request.Context(), types.ID(middleware.CallerUID(c)), limitParam(c, 50))
	if err != nil {
		writeServerError(c, err)
		return
	}
	if recs == nil {
		recs = []notify.Record{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"notifications": recs})
}

func respondRide(c *gin.Context, r *ride.Ride, err error) {
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func nonNil(rides []ride.Ride) []ride.Ride {
	if rides == nil {
		return []ride.Ride{}
	}
	return rides
}
