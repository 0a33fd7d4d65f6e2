// README: Eligibility inputs and decision.
package eligibility

import (
	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/types"
)

// Candidate is the ride a driver wants to claim.
type Candidate struct {
	RideID       types.ID
	Date         civil.Date
	Time         civil.Time
	Pickup       string
	Destination  string
	VehicleClass driver.VehicleClass
}

// Booking is another ride the same driver already holds.
type Booking struct {
	RideID      types.ID
	Date        civil.Date
	Time        civil.Time
	Pickup      string
	Destination string
}

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }
