// README: Archive ledger model: per-month, per-driver entries and the commission summary.
package archive

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

// Unassigned groups completed rides that somehow lost their driver id.
const Unassigned types.ID = "unassigned"

var (
	ErrAlreadyRunning = errors.New("archive run already in progress")
	ErrBadMonth       = errors.New("month must be YYYY-MM")
)

// ArchivedRide is one completed ride frozen into the ledger. Income is the
// effective price at archive time.
type ArchivedRide struct {
	RideID      types.ID    `json:"ride_id"`
	MonthKey    string      `json:"month_key"`
	DriverID    types.ID    `json:"driver_id"`
	Income      types.Money `json:"income"`
	CompletedAt time.Time   `json:"completed_at"`
	Ride        ride.Ride   `json:"ride"`
}

// Entry is the ledger bucket for one driver in one month.
type Entry struct {
	MonthKey string         `json:"month_key"`
	DriverID types.ID       `json:"driver_id"`
	Rides    []ArchivedRide `json:"rides"`
}

func (e Entry) Income() types.Money {
	total := types.Money{Currency: types.DefaultCurrency}
	for _, r := range e.Rides {
		total = total.Add(r.Income)
	}
	return total
}

type DriverSummary struct {
	DriverID          types.ID        `json:"driver_id"`
	DriverName        string          `json:"driver_name"`
	Rides             int             `json:"rides"`
	Income            types.Money     `json:"income"`
	ServiceFeePercent decimal.Decimal `json:"service_fee_percent"`
	Commission        types.Money     `json:"commission"`
	Payout            types.Money     `json:"payout"`
}

type Summary struct {
	MonthKey   string          `json:"month_key"`
	Drivers    []DriverSummary `json:"drivers"`
	Income     types.Money     `json:"income"`
	Commission types.Money     `json:"commission"`
}

// Report describes one rollup run. Skipped is set when the month was already rolled up.
type Report struct {
	MonthKey string    `json:"month_key"`
	Skipped  bool      `json:"skipped"`
	Scanned  int       `json:"scanned"`
	Inserted int       `json:"inserted"`
	Entries  int       `json:"entries"`
	Months   []string  `json:"months,omitempty"`
	RanAt    time.Time `json:"ran_at"`
}

// commission applies pct to income, rounded to cents.
func commission(income types.Money, pct decimal.Decimal) types.Money {
	amt := income.Amount.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
	return types.Money{Amount: amt, Currency: income.Currency}
}

func validMonth(key string) bool {
	if len(key) != 7 {
		return false
	}
	_, err := time.Parse("2006-01", key)
	return err == nil
}
