// README: Pricing service loads the rate table and computes quotes.
package pricing

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"ridebook/internal/modules/driver"
	"ridebook/internal/types"
)

const rateCacheTTL = 5 * time.Minute

type Service struct {
	store Store

	mu       sync.RWMutex
	table    RateTable
	loadedAt time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Quote prices a ride with the current rate table.
func (s *Service) Quote(ctx context.Context, in Input) (Quote, error) {
	table, err := s.rates(ctx)
	if err != nil {
		return Quote{}, err
	}
	return Compute(in, table)
}

func (s *Service) SaveRate(ctx context.Context, r Rate) error {
	if err := s.store.SaveRate(ctx, r); err != nil {
		return err
	}
	s.mu.Lock()
	s.table = nil
	s.mu.Unlock()
	return nil
}

// EnsureRates seeds table into an empty store and reports how many rates it wrote.
func (s *Service) EnsureRates(ctx context.Context, table RateTable) (int, error) {
	current, err := s.store.LoadRates(ctx)
	if err != nil {
		return 0, err
	}
	if len(current) > 0 {
		return 0, nil
	}
	for _, r := range table {
		if err := s.SaveRate(ctx, r); err != nil {
			return 0, err
		}
	}
	return len(table), nil
}

func (s *Service) rates(ctx context.Context) (RateTable, error) {
	s.mu.RLock()
	table, fresh := s.table, time.Since(s.loadedAt) < rateCacheTTL
	s.mu.RUnlock()
	if table != nil && fresh {
		return table, nil
	}

	table, err := s.store.LoadRates(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.table, s.loadedAt = table, time.Now()
	s.mu.Unlock()
	return table, nil
}

// DefaultRateTable is the seed table for the Southern California airport runs.
func DefaultRateTable(from, to int) RateTable {
	holidays := HolidaysBetween(from, to)
	fees := func() []Fee {
		return []Fee{
			{Name: "Baggage claim meeting", Kind: FeeBaggageClaim, Amount: types.USD(10)},
			{Name: "After hours", Kind: FeeAfterHours, Amount: types.USD(15), Window: &DefaultAfterHours},
			{Name: "Major holiday", Kind: FeeHoliday, Amount: types.USD(25), Holidays: holidays},
		}
	}
	rate := func(dest string, sedan, suv, xl int64) Rate {
		return Rate{
			Destination: dest,
			BasePrices: map[driver.VehicleClass]types.Money{
				driver.ClassSedan: types.USD(sedan),
				driver.ClassSUV:   types.USD(suv),
				driver.ClassXLSUV: types.USD(xl),
			},
			Fees: fees(),
		}
	}
	table := RateTable{}
	for _, r := range []Rate{
		rate("SNA", 65, 85, 110),
		rate("LAX", 140, 170, 210),
		rate("SAN", 190, 230, 280),
		rate("LGB", 95, 120, 150),
		rate("ONT", 120, 150, 185),
		rate(FallbackDestination, 90, 115, 145),
	} {
		table[NormalizeDestination(r.Destination)] = r
	}
	return table
}

// DefaultYears spans the seed holiday calendar around now.
func DefaultYears(now time.Time) (int, int) {
	y := civil.DateOf(now).Year
	return y - 1, y + 2
}
