// README: Driver, vehicle class hierarchy and day-off definitions.
package driver

import (
	"errors"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"ridebook/internal/types"
)

type VehicleClass string

const (
	ClassSedan VehicleClass = "sedan"
	ClassSUV   VehicleClass = "suv"
	ClassXLSUV VehicleClass = "xl_suv"
)

// AllDrivers is the day-off sentinel that applies to every driver.
const AllDrivers types.ID = "all"

var (
	ErrNotFound       = errors.New("driver not found")
	ErrUnknownVehicle = errors.New("unknown vehicle class")
	ErrBadRequest     = errors.New("bad request")
)

var DefaultServiceFeePercent = decimal.NewFromInt(15)

func (c VehicleClass) rank() int {
	switch c {
	case ClassSedan:
		return 1
	case ClassSUV:
		return 2
	case ClassXLSUV:
		return 3
	}
	return 0
}

func (c VehicleClass) Valid() bool { return c.rank() > 0 }

// Covers reports whether a vehicle of class c may serve a ride requiring req.
// XL SUV covers everything, SUV covers sedan and SUV, sedan covers only sedan.
func (c VehicleClass) Covers(req VehicleClass) bool {
	return c.Valid() && req.Valid() && c.rank() >= req.rank()
}

func (c VehicleClass) DisplayName() string {
	switch c {
	case ClassSedan:
		return "Sedan"
	case ClassSUV:
		return "SUV"
	case ClassXLSUV:
		return "XL SUV"
	}
	return string(c)
}

// ParseVehicleClass accepts the wire value or the labels customers and drivers type.
func ParseVehicleClass(s string) (VehicleClass, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	switch n {
	case "sedan":
		return ClassSedan, nil
	case "suv":
		return ClassSUV, nil
	case "xl_suv", "xlsuv", "xl":
		return ClassXLSUV, nil
	}
	return "", ErrUnknownVehicle
}

type Vehicle struct {
	Class VehicleClass `json:"class"`
	Label string       `json:"label"`
}

type Driver struct {
	ID                types.ID        `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	PushToken         string          `json:"-"`
	Vehicles          []Vehicle       `json:"vehicles"`
	ServiceFeePercent decimal.Decimal `json:"service_fee_percent"`
	Active            bool            `json:"active"`
}

// BestVehicleFor picks the smallest vehicle that covers req, so the customer-facing
// snapshot names the car most likely to show up.
func (d Driver) BestVehicleFor(req VehicleClass) (Vehicle, bool) {
	var best Vehicle
	found := false
	for _, v := range d.Vehicles {
		if !v.Class.Covers(req) {
			continue
		}
		if !found || v.Class.rank() < best.Class.rank() {
			best, found = v, true
		}
	}
	return best, found
}

func (d Driver) FeePercent() decimal.Decimal {
	if d.ServiceFeePercent.IsZero() {
		return DefaultServiceFeePercent
	}
	return d.ServiceFeePercent
}

type DayOff struct {
	ID       types.ID   `json:"id"`
	DriverID types.ID   `json:"driver_id"`
	Date     civil.Date `json:"date"`
}

func (d DayOff) AppliesTo(driverID types.ID) bool {
	return d.DriverID == AllDrivers || d.DriverID == driverID
}
