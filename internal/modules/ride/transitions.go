// README: Pure ride transitions. Each returns the next ride state and the notifications it implies.
package ride

import (
	"crypto/subtle"
	"time"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/notify"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

const (
	confirmWindow       = 48 * time.Hour
	lateCancelWindow    = 24 * time.Hour
	lateCancelFeeUSD    = 20
	cancelledByAdmin    = "admin"
	cancelledByCustomer = "customer"
)

func created(r Ride, quiet bool) []notify.Intent {
	return []notify.Intent{{
		Audience:   notify.AudienceDrivers,
		Kind:       notify.KindRideAvailable,
		RideID:     r.ID,
		Payload:    payload(r),
		RecordOnly: quiet,
	}}
}

func accept(r Ride, d driver.Driver, now time.Time) (Ride, []notify.Intent, error) {
	if r.Status != StatusPending {
		return r, nil, ErrConflict
	}
	v, ok := d.BestVehicleFor(r.VehicleClass)
	if !ok {
		return r, nil, &DeniedError{Reason: "This ride requires a " + r.VehicleClass.DisplayName() + "-class vehicle or larger."}
	}
	reassigned := r.WasGivenUp && r.PreviousDriverID != nil && *r.PreviousDriverID != d.ID

	id := d.ID
	r.Status = StatusAccepted
	r.DriverID = &id
	r.Driver = &DriverSnapshot{Name: d.Name, Email: d.Email, Phone: d.Phone, Vehicle: vehicleLabel(v)}
	r.AcceptedAt = &now
	r.Confirmed, r.ConfirmedAt = false, nil
	r.WasGivenUp, r.GivenUpAt = false, nil
	r.PreviousDriverID, r.PreviousDriverName = nil, ""
	r.UpdatedAt = now

	kind := notify.KindRideAccepted
	if reassigned {
		kind = notify.KindRideReassigned
	}
	p := payload(r)
	return r, []notify.Intent{
		{Audience: notify.AudienceCustomer, Kind: kind, RideID: r.ID, Customer: customer(r), Payload: p},
		{Audience: notify.AudienceDrivers, Kind: notify.KindRideTaken, RideID: r.ID, Exclude: id, Payload: p},
	}, nil
}

// giveUp releases an accepted ride back to the pool. The customer is not told until
// another driver accepts.
func giveUp(r Ride, actor Actor, now time.Time) (Ride, []notify.Intent, error) {
	if !CanTransition(r.Status, StatusPending) {
		return r, nil, ErrInvalidState
	}
	if !actor.IsAdmin() && !r.AssignedTo(actor.ID) {
		return r, nil, ErrForbidden
	}
	p := payload(r)
	prevID := *r.DriverID
	prevName := ""
	if r.Driver != nil {
		prevName = r.Driver.Name
	}

	r.Status = StatusPending
	r.DriverID, r.Driver, r.AcceptedAt = nil, nil, nil
	r.Confirmed, r.ConfirmedAt = false, nil
	r.PreviousDriverID, r.PreviousDriverName = &prevID, prevName
	r.WasGivenUp, r.GivenUpAt = true, &now
	r.UpdatedAt = now

	return r, []notify.Intent{
		{Audience: notify.AudienceDrivers, Kind: notify.KindRideAvailableAgain, RideID: r.ID, Exclude: prevID, Payload: p},
		{Audience: notify.AudienceAdmin, Kind: notify.KindRideGivenUp, RideID: r.ID, Payload: p, RecordOnly: true},
	}, nil
}

func confirmPickup(r Ride, actor Actor, now time.Time, loc *time.Location) (Ride, []notify.Intent, error) {
	if r.Status != StatusAccepted {
		return r, nil, ErrInvalidState
	}
	if !actor.IsAdmin() && !r.AssignedTo(actor.ID) {
		return r, nil, ErrForbidden
	}
	if r.Confirmed {
		return r, nil, ErrAlreadyConfirmed
	}
	until := r.StartsAt(loc).Sub(now)
	if until > confirmWindow {
		return r, nil, ErrConfirmTooEarly
	}
	if until < 0 {
		return r, nil, ErrConfirmTooLate
	}

	r.Confirmed, r.ConfirmedAt = true, &now
	r.UpdatedAt = now
	return r, []notify.Intent{
		{Audience: notify.AudienceCustomer, Kind: notify.KindPickupConfirmed, RideID: r.ID, Customer: customer(r), Payload: payload(r)},
	}, nil
}

// complete requires a recorded pickup confirmation before anything else is considered.
func complete(r Ride, actor Actor, now time.Time, surveyToken string) (Ride, []notify.Intent, error) {
	if !CanTransition(r.Status, StatusCompleted) {
		return r, nil, ErrInvalidState
	}
	if !r.Confirmed {
		return r, nil, ErrNotConfirmed
	}
	if !actor.IsAdmin() && !r.AssignedTo(actor.ID) {
		return r, nil, ErrForbidden
	}

	r.Status = StatusCompleted
	r.CompletedAt = &now
	r.SurveyToken = surveyToken
	r.UpdatedAt = now

	p := payload(r)
	p["survey_token"] = surveyToken
	return r, []notify.Intent{
		{Audience: notify.AudienceCustomer, Kind: notify.KindSurveyRequested, RideID: r.ID, Customer: customer(r), Payload: p},
	}, nil
}

// reschedule moves the ride and stores the new quote beside the original price.
func reschedule(r Ride, actor Actor, date civil.Date, at civil.Time, quote pricing.Quote, now time.Time) (Ride, []notify.Intent, error) {
	if r.Status != StatusAccepted {
		return r, nil, ErrInvalidState
	}
	if !actor.IsAdmin() && !r.AssignedTo(actor.ID) {
		return r, nil, ErrForbidden
	}

	prevDate, prevTime := r.Date, r.Time
	r.PreviousDate, r.PreviousTime = &prevDate, &prevTime
	r.Date, r.Time = date, at
	r.RecalculatedPrice = &quote
	r.RescheduledAt = &now
	r.UpdatedAt = now

	p := payload(r)
	p["previous_date"] = prevDate.String()
	p["previous_time"] = types.HHMM(prevTime)
	intents := []notify.Intent{
		{Audience: notify.AudienceCustomer, Kind: notify.KindRideRescheduled, RideID: r.ID, Customer: customer(r), Payload: p},
		{Audience: notify.AudienceAdmin, Kind: notify.KindRideRescheduled, RideID: r.ID, Payload: p, RecordOnly: true},
	}
	if actor.IsAdmin() && r.DriverID != nil {
		intents = append(intents, notify.Intent{
			Audience: notify.AudienceDriver, Kind: notify.KindRideRescheduled, RideID: r.ID, DriverID: *r.DriverID, Payload: p,
		})
	}
	return r, intents, nil
}

func cancel(r Ride, actor Actor, now time.Time) (Ride, []notify.Intent, error) {
	if !actor.IsAdmin() {
		return r, nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return r, nil, ErrInvalidState
	}
	p := payload(r)
	prev := r.DriverID

	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.CancelledBy = cancelledByAdmin
	r.DriverID, r.Driver, r.AcceptedAt = nil, nil, nil
	r.Confirmed, r.ConfirmedAt = false, nil
	r.UpdatedAt = now

	intents := []notify.Intent{
		{Audience: notify.AudienceCustomer, Kind: notify.KindRideCancelled, RideID: r.ID, Customer: customer(r), Payload: p},
	}
	if prev != nil {
		intents = append(intents, notify.Intent{
			Audience: notify.AudienceDriver, Kind: notify.KindRideCancelled, RideID: r.ID, DriverID: *prev, Payload: p,
		})
	}
	return r, intents, nil
}

// cancelByCustomer is authenticated by the ride's cancellation token only.
func cancelByCustomer(r Ride, token string, now time.Time, loc *time.Location) (Ride, []notify.Intent, error) {
	if r.CancelToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(r.CancelToken)) != 1 {
		return r, nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCancelledByCustomer) {
		return r, nil, ErrInvalidState
	}
	until := r.StartsAt(loc).Sub(now)
	if until <= 0 {
		return r, nil, ErrRidePassed
	}
	fee := types.USD(0)
	if until < lateCancelWindow {
		fee = types.USD(lateCancelFeeUSD)
	}
	prev := r.DriverID
	p := payload(r)
	p["cancellation_fee"] = fee.String()

	r.Status = StatusCancelledByCustomer
	r.CancelledAt = &now
	r.CancelledBy = cancelledByCustomer
	r.CancellationFee = &fee
	r.DriverID, r.Driver, r.AcceptedAt = nil, nil, nil
	r.Confirmed, r.ConfirmedAt = false, nil
	r.UpdatedAt = now

	var intents []notify.Intent
	if prev != nil {
		intents = append(intents, notify.Intent{
			Audience: notify.AudienceDriver, Kind: notify.KindRideCancelledByCustomer, RideID: r.ID, DriverID: *prev, Payload: p,
		})
	}
	intents = append(intents, notify.Intent{
		Audience: notify.AudienceAdmin, Kind: notify.KindRideCancelledByCustomer, RideID: r.ID, Payload: p,
	})
	return r, intents, nil
}

func deleted(r Ride, actor Actor) ([]notify.Intent, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return []notify.Intent{
		{Audience: notify.AudienceAdmin, Kind: notify.KindRideDeleted, RideID: r.ID, Payload: payload(r), RecordOnly: true},
	}, nil
}

func payload(r Ride) map[string]string {
	p := map[string]string{
		"customer":    r.CustomerName,
		"pickup":      r.Pickup,
		"destination": r.Destination,
		"date":        r.Date.String(),
		"time":        types.HHMM(r.Time),
		"vehicle":     r.VehicleClass.DisplayName(),
		"price":       r.EffectivePrice().TotalPrice.String(),
	}
	if r.Driver != nil {
		p["driver"] = r.Driver.Name
		p["driver_vehicle"] = r.Driver.Vehicle
	}
	return p
}

func customer(r Ride) *notify.Contact {
	return &notify.Contact{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone}
}

func vehicleLabel(v driver.Vehicle) string {
	if v.Label != "" {
		return v.Label
	}
	return v.Class.DisplayName()
}
