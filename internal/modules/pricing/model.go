// README: Rate table, fee rules and quote definitions per destination and vehicle class.
package pricing

import (
	"strings"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/eligibility"
	"ridebook/internal/types"
)

type FeeKind string

const (
	FeeBaggageClaim FeeKind = "baggage_claim"
	FeeAfterHours   FeeKind = "after_hours"
	FeeHoliday      FeeKind = "holiday"
)

// FallbackDestination keys the rate used when a destination has no entry of its own.
const FallbackDestination = "*"

// Window is a local wall-clock interval, From inclusive and To exclusive. From > To wraps midnight.
type Window struct {
	From civil.Time `json:"from"`
	To   civil.Time `json:"to"`
}

func (w Window) Contains(t civil.Time) bool {
	m, from, to := minutes(t), minutes(w.From), minutes(w.To)
	if from == to {
		return false
	}
	if from < to {
		return m >= from && m < to
	}
	return m >= from || m < to
}

func minutes(t civil.Time) int { return t.Hour*60 + t.Minute }

// DefaultAfterHours is 20:00–06:00.
var DefaultAfterHours = Window{
	From: civil.Time{Hour: 20},
	To:   civil.Time{Hour: 6},
}

type Fee struct {
	Name     string       `json:"name"`
	Kind     FeeKind      `json:"kind"`
	Amount   types.Money  `json:"amount"`
	Window   *Window      `json:"window,omitempty"`
	Holidays []civil.Date `json:"holidays,omitempty"`
}

type Rate struct {
	Destination string                              `json:"destination"`
	BasePrices  map[driver.VehicleClass]types.Money `json:"base_prices"`
	Fees        []Fee                               `json:"fees"`
}

// RateTable maps a normalised destination to its rate.
type RateTable map[string]Rate

func NormalizeDestination(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Lookup tries the destination as typed, then its canonical airport code, then the fallback.
func (t RateTable) Lookup(destination string) (Rate, bool) {
	if r, ok := t[NormalizeDestination(destination)]; ok {
		return r, true
	}
	if code, ok := eligibility.AirportCode(destination); ok {
		if r, ok := t[NormalizeDestination(code)]; ok {
			return r, true
		}
	}
	r, ok := t[FallbackDestination]
	return r, ok
}

type Input struct {
	Destination        string
	VehicleClass       driver.VehicleClass
	Date               civil.Date
	Time               civil.Time
	MeetAtBaggageClaim bool
}

type Breakdown struct {
	BasePrice       types.Money `json:"base_price"`
	BaggageClaimFee types.Money `json:"baggage_claim_fee"`
	AfterHoursFee   types.Money `json:"after_hours_fee"`
	HolidayFee      types.Money `json:"holiday_fee"`
}

type Quote struct {
	TotalPrice   types.Money         `json:"total_price"`
	Breakdown    Breakdown           `json:"breakdown"`
	VehicleClass driver.VehicleClass `json:"vehicle_type"`
	Destination  string              `json:"destination"`
}
