// README: Admin handlers: ride oversight and overrides, drivers, day-offs, rates, archive and notification log.
package handlers

import (
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ridebook/internal/modules/archive"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type AdminHandler struct {
	rides   *ride.Service
	drivers *driver.Service
	pricing *pricing.Service
	archive *archive.Service
	records notify.RecordStore
}

type AdminDeps struct {
	Rides   *ride.Service
	Drivers *driver.Service
	Pricing *pricing.Service
	Archive *archive.Service
	Records notify.RecordStore
}

func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		rides:   deps.Rides,
		drivers: deps.Drivers,
		pricing: deps.Pricing,
		archive: deps.Archive,
		records: deps.Records,
	}
}

// ListRides filters by ?status=a,b&driver_id=&from=YYYY-MM-DD&to=YYYY-MM-DD&limit=.
func (h *AdminHandler) ListRides(c *gin.Context) {
	f := ride.Filter{DriverID: types.ID(c.Query("driver_id")), Limit: limitParam(c, 0)}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := ride.ParseStatus(s)
			if err != nil {
				writeError(c, http.StatusBadRequest, err.Error())
				return
			}
			f.Status = append(f.Status, st)
		}
	}
	for _, p := range []struct {
		key string
		dst **civil.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		if raw := c.Query(p.key); raw != "" {
			d, err := types.ParseDate(raw)
			if err != nil {
				writeError(c, http.StatusBadRequest, err.Error())
				return
			}
			*p.dst = &d
		}
	}
	rides, err := h.rides.List(c.Request.Context(), f)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"rides": nonNil(rides)})
}

func (h *AdminHandler) GetRide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	respondRide(c, r, err)
}

type assignReq struct {
	DriverID string `json:"driver_id" binding:"required"`
}

// Assign accepts the ride on behalf of a driver; eligibility still applies.
func (h *AdminHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || !isValidID(req.DriverID) {
		writeError(c, http.StatusBadRequest, "driver_id is required")
		return
	}
	r, err := h.rides.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:   id,
		DriverID: types.ID(req.DriverID),
		Actor:    adminActor(c),
	})
	respondRide(c, r, err)
}

func (h *AdminHandler) GiveUp(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.GiveUp(c.Request.Context(), ride.GiveUpCommand{RideID: id, Actor: adminActor(c)})
	respondRide(c, r, err)
}

func (h *AdminHandler) Confirm(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.ConfirmPickup(c.Request.Context(), ride.ConfirmCommand{RideID: id, Actor: adminActor(c)})
	respondRide(c, r, err)
}

func (h *AdminHandler) Complete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{RideID: id, Actor: adminActor(c)})
	respondRide(c, r, err)
}

func (h *AdminHandler) Reschedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var cmd ride.RescheduleCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd.RideID, cmd.Actor = id, adminActor(c)
	r, err := h.rides.Reschedule(c.Request.Context(), cmd)
	respondRide(c, r, err)
}

func (h *AdminHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{RideID: id, Actor: adminActor(c)})
	respondRide(c, r, err)
}

func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.rides.Delete(c.Request.Context(), ride.DeleteCommand{RideID: id, Actor: adminActor(c)}); err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"deleted": true})
}

// Eligibility explains why ?driver_id= can or cannot take the ride.
func (h *AdminHandler) Eligibility(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	driverID := c.Query("driver_id")
	if !isValidID(driverID) {
		writeError(c, http.StatusBadRequest, "driver_id is required")
		return
	}
	d, err := h.rides.CheckEligibility(c.Request.Context(), id, types.ID(driverID))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *AdminHandler) ListDrivers(c *gin.Context) {
	ds, err := h.drivers.List(c.Request.Context())
	if err != nil {
		writeDriverError(c, err)
		return
	}
	if ds == nil {
		ds = []driver.Driver{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"drivers": ds})
}

type registerDriverReq struct {
	ID                string           `json:"id" binding:"required"`
	Name              string           `json:"name" binding:"required"`
	Email             string           `json:"email"`
	Phone             string           `json:"phone"`
	PushToken         string           `json:"push_token"`
	Vehicles          []driver.Vehicle `json:"vehicles"`
	ServiceFeePercent decimal.Decimal  `json:"service_fee_percent"`
	Active            *bool            `json:"active"`
}

// RegisterDriver creates or replaces a driver; the id must match the driver's Firebase uid.
func (h *AdminHandler) RegisterDriver(c *gin.Context) {
	var req registerDriverReq
	if err := c.ShouldBindJSON(&req); err != nil || !isValidID(req.ID) {
		writeError(c, http.StatusBadRequest, "id and name are required")
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	d, err := h.drivers.Register(c.Request.Context(), driver.Driver{
		ID:                types.ID(req.ID),
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		PushToken:         req.PushToken,
		Vehicles:          req.Vehicles,
		ServiceFeePercent: req.ServiceFeePercent,
		Active:            active,
	})
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

type serviceFeeReq struct {
	Percent decimal.Decimal `json:"percent"`
}

func (h *AdminHandler) SetServiceFee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req serviceFeeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "percent is required")
		return
	}
	if err := h.drivers.SetServiceFee(c.Request.Context(), id, req.Percent); err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"driver_id": id, "service_fee_percent": req.Percent})
}

func (h *AdminHandler) ListDayOffs(c *gin.Context) {
	ds, err := h.drivers.ListDayOffs(c.Request.Context())
	if err != nil {
		writeDriverError(c, err)
		return
	}
	if ds == nil {
		ds = []driver.DayOff{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"day_offs": ds})
}

type dayOffReq struct {
	DriverID string `json:"driver_id" binding:"required"`
	Date     string `json:"date" binding:"required"`
}

// AddDayOff blocks a date for one driver, or for all drivers with driver_id "all".
func (h *AdminHandler) AddDayOff(c *gin.Context) {
	var req dayOffReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "driver_id and date are required")
		return
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	d, err := h.drivers.AddDayOff(c.Request.Context(), types.ID(req.DriverID), date)
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, d)
}

func (h *AdminHandler) DeleteDayOff(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	found, err := h.drivers.DeleteDayOff(c.Request.Context(), id)
	if err != nil {
		writeDriverError(c, err)
		return
	}
	if !found {
		writeError(c, http.StatusNotFound, "day off not found")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"deleted": true})
}

func (h *AdminHandler) SaveRate(c *gin.Context) {
	var rate pricing.Rate
	if err := c.ShouldBindJSON(&rate); err != nil || strings.TrimSpace(rate.Destination) == "" || len(rate.BasePrices) == 0 {
		writeError(c, http.StatusBadRequest, "destination and base_prices are required")
		return
	}
	for class := range rate.BasePrices {
		if !class.Valid() {
			writeError(c, http.StatusBadRequest, driver.ErrUnknownVehicle.Error())
			return
		}
	}
	if err := h.pricing.SaveRate(c.Request.Context(), rate); err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rate)
}

// RunArchive triggers the monthly rollup now. It is a no-op if this month already ran.
func (h *AdminHandler) RunArchive(c *gin.Context) {
	rep, err := h.archive.RunNow(c.Request.Context())
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rep)
}

func (h *AdminHandler) ArchiveMonths(c *gin.Context) {
	months, err := h.archive.Months(c.Request.Context())
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	if months == nil {
		months = []string{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"months": months})
}

func (h *AdminHandler) ArchiveSummary(c *gin.Context) {
	sum, err := h.archive.Summary(c.Request.Context(), c.Param("month"))
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sum)
}

func (h *AdminHandler) Notifications(c *gin.Context) {
	recs, err := h.records.ListForAdmin(c.Request.Context(), limitParam(c, 100))
	if err != nil {
		writeServerError(c, err)
		return
	}
	if recs == nil {
		recs = []notify.Record{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"notifications": recs})
}
