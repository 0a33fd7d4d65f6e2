// README: Subject/body text for each notification kind.
package notify

import (
	"fmt"
	"strings"
)

// Render builds the subject and body for an intent from its payload.
// Missing payload keys render as empty strings.
func Render(in Intent) (subject, body string) {
	p := func(k string) string { return in.Payload[k] }
	when := strings.TrimSpace(p("date") + " " + p("time"))
	route := fmt.Sprintf("%s to %s", p("pickup"), p("destination"))

	switch in.Kind {
	case KindRideAvailable:
		return "New ride available",
			fmt.Sprintf("New %s ride on %s: %s. Price %s.", p("vehicle"), when, route, p("price"))
	case KindRideAvailableAgain:
		return "Ride available again",
			fmt.Sprintf("A ride on %s (%s) is available again.", when, route)
	case KindRideTaken:
		return "Ride taken",
			fmt.Sprintf("The ride on %s (%s) was accepted by another driver.", when, route)
	case KindRideAccepted:
		return "Your ride has been accepted",
			fmt.Sprintf("Hi %s, %s will drive you on %s (%s) in a %s.", p("customer"), p("driver"), when, route, p("driver_vehicle"))
	case KindRideReassigned:
		return "Your ride has a new driver",
			fmt.Sprintf("Hi %s, your ride on %s is now assigned to %s (%s).", p("customer"), when, p("driver"), p("driver_vehicle"))
	case KindRideGivenUp:
		return "Ride given up",
			fmt.Sprintf("%s gave up the ride on %s (%s).", p("driver"), when, route)
	case KindPickupConfirmed:
		return "Pickup confirmed",
			fmt.Sprintf("Hi %s, %s confirmed your pickup on %s at %s.", p("customer"), p("driver"), when, p("pickup"))
	case KindSurveyRequested:
		return "How was your ride?",
			fmt.Sprintf("Hi %s, thanks for riding with us. Tell us how it went: survey token %s.", p("customer"), p("survey_token"))
	case KindRideRescheduled:
		return "Ride rescheduled",
			fmt.Sprintf("The ride from %s %s was moved to %s. New price %s.", p("previous_date"), p("previous_time"), when, p("price"))
	case KindRideCancelled:
		return "Ride cancelled",
			fmt.Sprintf("The ride on %s (%s) has been cancelled.", when, route)
	case KindRideCancelledByCustomer:
		return "Ride cancelled by customer",
			fmt.Sprintf("%s cancelled the ride on %s (%s). Cancellation fee %s.", p("customer"), when, route, p("cancellation_fee"))
	case KindRideDeleted:
		return "Ride deleted",
			fmt.Sprintf("Ride %s (%s) was deleted.", in.RideID, when)
	}
	return string(in.Kind), fmt.Sprintf("Ride %s: %s", in.RideID, in.Kind)
}
