// README: Quiet hours during which new-ride alerts are recorded but not pushed.
package ride

import (
	"time"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type QuietHours struct {
	Window pricing.Window
}

// ParseQuietHours reads HH:MM bounds. Equal bounds disable quiet hours.
func ParseQuietHours(from, to string) (QuietHours, error) {
	f, err := types.ParseClockTime(from)
	if err != nil {
		return QuietHours{}, err
	}
	t, err := types.ParseClockTime(to)
	if err != nil {
		return QuietHours{}, err
	}
	return QuietHours{Window: pricing.Window{From: f, To: t}}, nil
}

func (q QuietHours) Active(now time.Time, loc *time.Location) bool {
	return q.Window.Contains(civil.TimeOf(now.In(loc)))
}
