// README: Pure eligibility decision for a driver claiming a ride (vehicle, day off, time conflict).
package eligibility

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/types"
)

const (
	// Rides at least this far apart never conflict.
	conflictFree = 2 * time.Hour
	// Minimum gap for an airport turnaround (drop off, then pick up at the same airport).
	turnaroundMin = 30 * time.Minute
)

// Check decides whether d may claim c. The first failing rule wins: vehicle capability,
// then day off, then time conflict with accepted rides.
func Check(c Candidate, d driver.Driver, dayOffs []driver.DayOff, accepted []Booking) Decision {
	if dec := checkVehicle(c, d); !dec.Allowed {
		return dec
	}
	if dec := checkDayOff(c, d, dayOffs); !dec.Allowed {
		return dec
	}
	return checkConflicts(c, accepted)
}

func checkVehicle(c Candidate, d driver.Driver) Decision {
	if len(d.Vehicles) == 0 {
		return Deny("No vehicle registered. Add a vehicle to your profile before accepting rides.")
	}
	if _, ok := d.BestVehicleFor(c.VehicleClass); ok {
		return Allow()
	}
	return Deny(fmt.Sprintf("This ride requires a %s-class vehicle or larger.", c.VehicleClass.DisplayName()))
}

func checkDayOff(c Candidate, d driver.Driver, dayOffs []driver.DayOff) Decision {
	for _, off := range dayOffs {
		if off.Date != c.Date || !off.AppliesTo(d.ID) {
			continue
		}
		if off.DriverID == driver.AllDrivers {
			return Deny(fmt.Sprintf("%s is a day off for all drivers.", c.Date))
		}
		return Deny(fmt.Sprintf("%s is marked as your day off.", c.Date))
	}
	return Allow()
}

func checkConflicts(c Candidate, accepted []Booking) Decision {
	at := wallClock(c.Date, c.Time)
	for _, b := range accepted {
		if b.RideID == c.RideID {
			continue
		}
		gap := absDuration(at.Sub(wallClock(b.Date, b.Time)))
		if gap >= conflictFree {
			continue
		}
		if gap >= turnaroundMin && SameAirport(b.Destination, c.Pickup) {
			continue
		}
		return Deny(fmt.Sprintf("Time conflict with your ride on %s at %s.", b.Date, types.HHMM(b.Time)))
	}
	return Allow()
}

// Gaps are measured on the wall clock, so UTC is used to keep DST out of the arithmetic.
func wallClock(d civil.Date, t civil.Time) time.Time {
	return types.At(d, t, time.UTC)
}

func absDuration(d time.Duration) time.Duration {
	return time.Duration(math.Abs(float64(d)))
}
