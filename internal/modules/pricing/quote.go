// README: Pure price computation; called at ride creation and again on reschedule.
package pricing

import (
	"errors"
	"fmt"

	"ridebook/internal/types"
)

var ErrNoRate = errors.New("no rate for destination")

// Compute prices a ride against table. It holds no state, so the same input always
// yields the same quote.
func Compute(in Input, table RateTable) (Quote, error) {
	rate, ok := table.Lookup(in.Destination)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrNoRate, in.Destination)
	}
	base, ok := rate.BasePrices[in.VehicleClass]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q has no %s price", ErrNoRate, in.Destination, in.VehicleClass)
	}
	zero := types.Money{Currency: base.Currency}
	b := Breakdown{
		BasePrice:       base,
		BaggageClaimFee: zero,
		AfterHoursFee:   zero,
		HolidayFee:      zero,
	}
	for _, f := range rate.Fees {
		switch f.Kind {
		case FeeBaggageClaim:
			if in.MeetAtBaggageClaim {
				b.BaggageClaimFee = b.BaggageClaimFee.Add(f.Amount)
			}
		case FeeAfterHours:
			w := DefaultAfterHours
			if f.Window != nil {
				w = *f.Window
			}
			if w.Contains(in.Time) {
				b.AfterHoursFee = b.AfterHoursFee.Add(f.Amount)
			}
		case FeeHoliday:
			for _, h := range f.Holidays {
				if h == in.Date {
					b.HolidayFee = b.HolidayFee.Add(f.Amount)
					break
				}
			}
		}
	}
	total := b.BasePrice.Add(b.BaggageClaimFee).Add(b.AfterHoursFee).Add(b.HolidayFee)
	return Quote{
		TotalPrice:   total,
		Breakdown:    b,
		VehicleClass: in.VehicleClass,
		Destination:  in.Destination,
	}, nil
}
