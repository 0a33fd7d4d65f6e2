// README: Notification intents produced by ride transitions and the messages sinks deliver.
package notify

import (
	"time"

	"ridebook/internal/types"
)

type Audience string

const (
	// AudienceDrivers is every active driver except Intent.Exclude.
	AudienceDrivers  Audience = "drivers"
	AudienceDriver   Audience = "driver"
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
)

type Kind string

const (
	KindRideAvailable           Kind = "ride_available"
	KindRideAvailableAgain      Kind = "ride_available_again"
	KindRideTaken               Kind = "ride_taken"
	KindRideAccepted            Kind = "ride_accepted"
	KindRideReassigned          Kind = "ride_reassigned"
	KindRideGivenUp             Kind = "ride_given_up"
	KindPickupConfirmed         Kind = "pickup_confirmed"
	KindSurveyRequested         Kind = "survey_requested"
	KindRideRescheduled         Kind = "ride_rescheduled"
	KindRideCancelled           Kind = "ride_cancelled"
	KindRideCancelledByCustomer Kind = "ride_cancelled_by_customer"
	KindRideDeleted             Kind = "ride_deleted"
)

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Intent is one notification a transition asks for. It carries everything needed to
// render and route it, so the transition itself never talks to a delivery channel.
type Intent struct {
	Audience Audience          `json:"audience"`
	Kind     Kind              `json:"kind"`
	RideID   types.ID          `json:"ride_id"`
	DriverID types.ID          `json:"driver_id,omitempty"`
	Exclude  types.ID          `json:"exclude,omitempty"`
	Customer *Contact          `json:"customer,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
	// RecordOnly writes the in-app record without push, email or SMS.
	RecordOnly bool `json:"record_only,omitempty"`
}

type Recipient struct {
	ID        types.ID
	Name      string
	Email     string
	Phone     string
	PushToken string
}

// Message is an intent resolved to concrete recipients and rendered text.
type Message struct {
	Intent     Intent
	Recipients []Recipient
	Subject    string
	Body       string
}

// Record is the durable in-app notification shown on dashboards.
type Record struct {
	ID        int64             `json:"id"`
	Audience  Audience          `json:"audience"`
	Kind      Kind              `json:"kind"`
	RideID    types.ID          `json:"ride_id"`
	DriverID  types.ID          `json:"driver_id,omitempty"`
	Exclude   types.ID          `json:"-"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// VisibleTo reports whether a driver's dashboard should list r.
func (r Record) VisibleTo(driverID types.ID) bool {
	switch r.Audience {
	case AudienceDrivers:
		return r.Exclude != driverID
	case AudienceDriver:
		return r.DriverID == driverID
	}
	return false
}
