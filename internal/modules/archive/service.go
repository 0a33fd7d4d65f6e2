// README: Monthly rollup of completed rides into the archive ledger, plus on-demand commission summaries.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ridebook/internal/logging"
	"ridebook/internal/modules/driver"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

// Rides is the slice of the live ride store the rollup needs.
type Rides interface {
	ListCompletedBefore(ctx context.Context, before time.Time) ([]ride.Ride, error)
	DeleteMany(ctx context.Context, ids []types.ID) error
}

type Drivers interface {
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
}

type Options struct {
	Location *time.Location
	LockTTL  time.Duration
	Clock    types.Clock
	Logger   *slog.Logger
}

type Service struct {
	rides   Rides
	store   Store
	guard   Guard
	drivers Drivers
	loc     *time.Location
	lockTTL time.Duration
	now     types.Clock
	log     *slog.Logger
	running sync.Mutex
}

func NewService(rides Rides, store Store, guard Guard, drivers Drivers, opts Options) *Service {
	s := &Service{
		rides:   rides,
		store:   store,
		guard:   guard,
		drivers: drivers,
		loc:     opts.Location,
		lockTTL: opts.LockTTL,
		now:     opts.Clock,
		log:     opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Minute
	}
	if s.now == nil {
		s.now = types.SystemClock
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// Run archives every completed ride from months before now's month. A second
// run in the same month is a no-op, and an overlapping run gets ErrAlreadyRunning.
func (s *Service) Run(ctx context.Context, now time.Time) (Report, error) {
	if !s.running.TryLock() {
		return Report{}, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	release, ok, err := s.guard.Acquire(ctx, s.lockTTL)
	if err != nil {
		return Report{}, fmt.Errorf("acquire archive lock: %w", err)
	}
	if !ok {
		return Report{}, ErrAlreadyRunning
	}
	defer release()

	log := logging.Action(s.log, "archive_run")
	rep := Report{MonthKey: types.MonthKey(now, s.loc), RanAt: now}
	done, err := s.guard.Done(ctx, rep.MonthKey)
	if err != nil {
		return Report{}, fmt.Errorf("read archive marker: %w", err)
	}
	if done {
		rep.Skipped = true
		log.Info("archive already ran this month", "month", rep.MonthKey)
		return rep, nil
	}

	completed, err := s.rides.ListCompletedBefore(ctx, types.StartOfMonth(now, s.loc))
	if err != nil {
		return Report{}, fmt.Errorf("list completed rides: %w", err)
	}
	rep.Scanned = len(completed)

	archived := make([]ArchivedRide, 0, len(completed))
	ids := make([]types.ID, 0, len(completed))
	months := map[string]bool{}
	buckets := map[string]bool{}
	for _, r := range completed {
		a := toArchived(r, s.loc)
		archived = append(archived, a)
		ids = append(ids, r.ID)
		months[a.MonthKey] = true
		buckets[a.MonthKey+"/"+string(a.DriverID)] = true
	}
	rep.Entries = len(buckets)
	for m := range months {
		rep.Months = append(rep.Months, m)
	}
	sort.Strings(rep.Months)

	if rep.Inserted, err = s.store.Append(ctx, archived); err != nil {
		return Report{}, fmt.Errorf("append archive: %w", err)
	}
	// Rides already present in the ledger from an interrupted run are removed too.
	if err := s.rides.DeleteMany(ctx, ids); err != nil {
		return Report{}, fmt.Errorf("remove archived rides: %w", err)
	}
	if err := s.guard.MarkDone(ctx, rep.MonthKey, now); err != nil {
		return Report{}, fmt.Errorf("write archive marker: %w", err)
	}
	log.Info("archive complete",
		"month", rep.MonthKey, "scanned", rep.Scanned, "inserted", rep.Inserted, "entries", rep.Entries)
	return rep, nil
}

// RunNow runs the rollup at the service clock's current time.
func (s *Service) RunNow(ctx context.Context) (Report, error) {
	return s.Run(ctx, s.now())
}

// Summary totals a ledger month per driver. Commission uses each driver's
// current service fee, so a later fee change alters past months too.
func (s *Service) Summary(ctx context.Context, monthKey string) (Summary, error) {
	if !validMonth(monthKey) {
		return Summary{}, ErrBadMonth
	}
	entries, err := s.store.Month(ctx, monthKey)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		MonthKey:   monthKey,
		Drivers:    []DriverSummary{},
		Income:     types.Money{Currency: types.DefaultCurrency},
		Commission: types.Money{Currency: types.DefaultCurrency},
	}
	for _, e := range entries {
		ds := DriverSummary{
			DriverID:          e.DriverID,
			Rides:             len(e.Rides),
			Income:            e.Income(),
			ServiceFeePercent: driver.DefaultServiceFeePercent,
		}
		if d, err := s.drivers.Get(ctx, e.DriverID); err == nil {
			ds.DriverName = d.Name
			ds.ServiceFeePercent = d.FeePercent()
		} else if !errors.Is(err, driver.ErrNotFound) {
			return Summary{}, fmt.Errorf("driver %s: %w", e.DriverID, err)
		} else if len(e.Rides) > 0 && e.Rides[0].Ride.Driver != nil {
			ds.DriverName = e.Rides[0].Ride.Driver.Name
		}
		ds.Commission = commission(ds.Income, ds.ServiceFeePercent)
		ds.Payout = types.Money{Amount: ds.Income.Amount.Sub(ds.Commission.Amount), Currency: ds.Income.Currency}
		sum.Drivers = append(sum.Drivers, ds)
		sum.Income = sum.Income.Add(ds.Income)
		sum.Commission = sum.Commission.Add(ds.Commission)
	}
	return sum, nil
}

func (s *Service) Months(ctx context.Context) ([]string, error) {
	return s.store.Months(ctx)
}

// RunScheduler attempts a rollup on every tick until ctx ends. Only the first
// tick of a month does any work.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logging.Action(s.log, "archive_scheduler")
	for {
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			log.Error("archive run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func toArchived(r ride.Ride, loc *time.Location) ArchivedRide {
	driverID := Unassigned
	if r.DriverID != nil {
		driverID = *r.DriverID
	}
	completedAt := *r.CompletedAt
	return ArchivedRide{
		RideID:      r.ID,
		MonthKey:    types.MonthKey(completedAt, loc),
		DriverID:    driverID,
		Income:      r.EffectivePrice().TotalPrice,
		CompletedAt: completedAt,
		Ride:        r,
	}
}
