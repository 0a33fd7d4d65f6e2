// README: Public booking handlers: create a ride, cancel it with the customer token, and quote a price.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type PublicHandler struct {
	rides   *ride.Service
	pricing *pricing.Service
}

func NewPublicHandler(rides *ride.Service, pricingSvc *pricing.Service) *PublicHandler {
	return &PublicHandler{rides: rides, pricing: pricingSvc}
}

// createRideResp is the only place the cancel token leaves the service.
type createRideResp struct {
	Ride        *ride.Ride `json:"ride"`
	CancelToken string     `json:"cancel_token"`
}

func (h *PublicHandler) CreateRide(c *gin.Context) {
	var cmd ride.CreateCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.Create(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, createRideResp{Ride: r, CancelToken: r.CancelToken})
}

type cancelRideReq struct {
	Token string `json:"token" binding:"required"`
}

func (h *PublicHandler) CancelRide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "missing token")
		return
	}
	r, err := h.rides.CancelByCustomer(c.Request.Context(), ride.CustomerCancelCommand{RideID: id, Token: req.Token})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"ride_id":          r.ID,
		"status":           r.Status,
		"cancellation_fee": r.CancellationFee,
	})
}

type quoteReq struct {
	Destination        string `json:"destination" binding:"required"`
	VehicleType        string `json:"vehicle_type" binding:"required"`
	Date               string `json:"date" binding:"required"`
	Time               string `json:"time" binding:"required"`
	MeetAtBaggageClaim bool   `json:"meet_at_baggage_claim"`
}

func (h *PublicHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "destination, vehicle_type, date and time are required")
		return
	}
	class, err := driver.ParseVehicleClass(req.VehicleType)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	at, err := types.ParseClockTime(req.Time)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	q, err := h.pricing.Quote(c.Request.Context(), pricing.Input{
		Destination:        req.Destination,
		VehicleClass:       class,
		Date:               date,
		Time:               at,
		MeetAtBaggageClaim: req.MeetAtBaggageClaim,
	})
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
