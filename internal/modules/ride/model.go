// README: Ride aggregate, status definitions and the allowed state flow.
package ride

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type Status string

const (
	StatusPending             Status = "pending"
	StatusAccepted            Status = "accepted"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
	StatusCancelledByCustomer Status = "cancelled_by_customer"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusCompleted, StatusCancelled, StatusCancelledByCustomer:
		return st, nil
	}
	return "", fmt.Errorf("unknown ride status %q", s)
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusCancelledByCustomer
}

// AllowedTransitions represents the ride state flow as code. Every committed
// write is checked against it; accepted -> accepted covers confirm and reschedule.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusCancelled, StatusCancelledByCustomer},
	StatusAccepted: {StatusPending, StatusAccepted, StatusCompleted, StatusCancelled, StatusCancelledByCustomer},
}

func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// Actor is the authenticated caller of a transition.
type Actor struct {
	ID   types.ID
	Role Role
}

func Admin(id types.ID) Actor       { return Actor{ID: id, Role: RoleAdmin} }
func DriverActor(id types.ID) Actor { return Actor{ID: id, Role: RoleDriver} }
func (a Actor) IsAdmin() bool       { return a.Role == RoleAdmin }

type FlightInfo struct {
	Airline     string `json:"airline,omitempty"`
	Number      string `json:"number,omitempty"`
	ArrivalTime string `json:"arrival_time,omitempty"`
}

// DriverSnapshot is copied onto the ride at acceptance and never refreshed.
type DriverSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

type Ride struct {
	ID                 types.ID            `json:"id"`
	CustomerName       string              `json:"customer_name"`
	CustomerEmail      string              `json:"customer_email"`
	CustomerPhone      string              `json:"customer_phone"`
	Pickup             string              `json:"pickup"`
	Destination        string              `json:"destination"`
	Date               civil.Date          `json:"date"`
	Time               civil.Time          `json:"time"`
	Passengers         int                 `json:"passengers"`
	VehicleClass       driver.VehicleClass `json:"vehicle_type"`
	Flight             *FlightInfo         `json:"flight,omitempty"`
	MeetAtBaggageClaim bool                `json:"meet_at_baggage_claim"`
	Notes              string              `json:"notes,omitempty"`

	DriverID           *types.ID       `json:"driver_id,omitempty"`
	Driver             *DriverSnapshot `json:"driver,omitempty"`
	PreviousDriverID   *types.ID       `json:"previous_driver_id,omitempty"`
	PreviousDriverName string          `json:"previous_driver_name,omitempty"`
	WasGivenUp         bool            `json:"was_given_up"`
	GivenUpAt          *time.Time      `json:"given_up_at,omitempty"`

	Status          Status       `json:"status"`
	StatusVersion   int          `json:"status_version"`
	Confirmed       bool         `json:"confirmed"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	CancelledBy     string       `json:"cancelled_by,omitempty"`
	CancellationFee *types.Money `json:"cancellation_fee,omitempty"`
	CancelToken     string       `json:"-"`
	SurveyToken     string       `json:"-"`

	Price             pricing.Quote  `json:"price"`
	RecalculatedPrice *pricing.Quote `json:"recalculated_price,omitempty"`
	PreviousDate      *civil.Date    `json:"previous_date,omitempty"`
	PreviousTime      *civil.Time    `json:"previous_time,omitempty"`
	RescheduledAt     *time.Time     `json:"rescheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectivePrice is the recalculated quote when a reschedule produced one, else the original.
func (r Ride) EffectivePrice() pricing.Quote {
	if r.RecalculatedPrice != nil {
		return *r.RecalculatedPrice
	}
	return r.Price
}

// StartsAt is the pickup instant in loc.
func (r Ride) StartsAt(loc *time.Location) time.Time {
	return types.At(r.Date, r.Time, loc)
}

func (r Ride) AssignedTo(id types.ID) bool {
	return r.DriverID != nil && *r.DriverID == id
}

// Filter narrows admin and dashboard listings. Zero values match everything.
type Filter struct {
	Status   []Status
	DriverID types.ID
	From     *civil.Date
	To       *civil.Date
	Limit    int
}

func (f Filter) Match(r Ride) bool {
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.DriverID != "" && !r.AssignedTo(f.DriverID) {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}
